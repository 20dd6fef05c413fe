// COP entities served by the store and written to the feed
package cop

import "time"

// UnitType classifies a tracked unit.
type UnitType string

const (
	UnitMilitary UnitType = "MILITARY"
	UnitPolice   UnitType = "POLICE"
	UnitSensor   UnitType = "SENSOR"
)

// UnitTypes lists unit types in declaration order. Seeding indexes into it.
var UnitTypes = []UnitType{UnitMilitary, UnitPolice, UnitSensor}

// Band is a radio frequency band observed by spectrum activity readings.
type Band string

const (
	BandVHF Band = "VHF"
	BandUHF Band = "UHF"
	BandSHF Band = "SHF"
)

// Bands lists every band. A spectrum refresh produces one reading per entry.
var Bands = []Band{BandVHF, BandUHF, BandSHF}

// IncidentType is the kind of simulated electromagnetic incident.
type IncidentType string

const (
	IncidentSignalJamming            IncidentType = "SIGNAL_JAMMING"
	IncidentUnidentifiedTransmission IncidentType = "UNIDENTIFIED_TRANSMISSION"
	IncidentInterference             IncidentType = "INTERFERENCE"
)

// IncidentTypes lists every incident type.
var IncidentTypes = []IncidentType{IncidentSignalJamming, IncidentUnidentifiedTransmission, IncidentInterference}

// Description returns the fixed human readable text for an incident type.
func (t IncidentType) Description() string {
	switch t {
	case IncidentSignalJamming:
		return "Signal Jamming Detected"
	case IncidentUnidentifiedTransmission:
		return "Unidentified Transmission"
	case IncidentInterference:
		return "Interference Detected"
	default:
		return string(t)
	}
}

// Severity constants for incidents.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// DefaultAckResponse is stored when a command is acknowledged without a response.
const DefaultAckResponse = "Acknowledged"

// Unit is a tracked entity whose position drifts on every unit tick.
type Unit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        UnitType  `json:"type"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SpectrumActivity is one band reading. The whole set is regenerated per refresh.
type SpectrumActivity struct {
	ID        string    `json:"id"`
	Band      Band      `json:"band"`
	Intensity float64   `json:"intensity"` // 0.0 - 1.0
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Incident is an append-only event record.
type Incident struct {
	ID          string       `json:"id"`
	Type        IncidentType `json:"type"`
	Description string       `json:"description"`
	Severity    string       `json:"severity"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Command is a message to a unit. Response stays nil until acknowledged.
type Command struct {
	ID           string    `json:"id"`
	UnitID       string    `json:"unitId"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
	Response     *string   `json:"response"`
}

// Stats summarizes collection sizes.
type Stats struct {
	Units           int `json:"units"`
	Spectrum        int `json:"spectrum"`
	Incidents       int `json:"incidents"`
	Commands        int `json:"commands"`
	PendingCommands int `json:"pendingCommands"`
}
