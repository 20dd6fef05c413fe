// In-memory COP state with one lock per collection
package cop

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SeedUnitCount is the number of units created at construction. Units are
// never added or removed afterwards.
const SeedUnitCount = 5

// ErrCommandNotFound is returned when acknowledging an unknown command id.
var ErrCommandNotFound = errors.New("command not found")

// Store owns the four COP collections. Each collection is guarded by its own
// lock and no method holds more than one of them.
type Store struct {
	gen   *Generator
	now   func() time.Time
	newID func() string

	unitsMu   sync.RWMutex
	units     map[string]*Unit
	unitOrder []string

	spectrumMu sync.RWMutex
	spectrum   []SpectrumActivity

	incidentsMu sync.RWMutex
	incidents   []Incident

	commandsMu sync.RWMutex
	commands   []Command
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc replaces the UUID generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates a store and seeds units and spectrum activity.
func NewStore(gen *Generator, opts ...Option) *Store {
	if gen == nil {
		gen = NewGenerator(nil, DefaultArea, DefaultDriftScale)
	}
	s := &Store{
		gen:   gen,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
		units: make(map[string]*Unit, SeedUnitCount),
	}
	for _, o := range opts {
		o(s)
	}
	s.seed()
	return s
}

func (s *Store) seed() {
	s.unitsMu.Lock()
	for i := 1; i <= SeedUnitCount; i++ {
		lat, lon := s.gen.Position()
		u := &Unit{
			ID:          fmt.Sprintf("unit-%d", i),
			Name:        fmt.Sprintf("Unit %d", i),
			Type:        UnitTypes[i%len(UnitTypes)],
			Latitude:    lat,
			Longitude:   lon,
			LastUpdated: s.now().UTC(),
		}
		s.units[u.ID] = u
		s.unitOrder = append(s.unitOrder, u.ID)
	}
	s.unitsMu.Unlock()

	spectrum := s.newSpectrum()
	s.spectrumMu.Lock()
	s.spectrum = spectrum
	s.spectrumMu.Unlock()
}

// ListUnits returns a copy of all units in seed order.
func (s *Store) ListUnits() []Unit {
	s.unitsMu.RLock()
	defer s.unitsMu.RUnlock()
	out := make([]Unit, 0, len(s.unitOrder))
	for _, id := range s.unitOrder {
		out = append(out, *s.units[id])
	}
	return out
}

// ListSpectrumActivity returns a copy of the current spectrum readings.
func (s *Store) ListSpectrumActivity() []SpectrumActivity {
	s.spectrumMu.RLock()
	defer s.spectrumMu.RUnlock()
	out := make([]SpectrumActivity, len(s.spectrum))
	copy(out, s.spectrum)
	return out
}

// ListIncidents returns a copy of all incidents, oldest first.
func (s *Store) ListIncidents() []Incident {
	s.incidentsMu.RLock()
	defer s.incidentsMu.RUnlock()
	out := make([]Incident, len(s.incidents))
	copy(out, s.incidents)
	return out
}

// ListCommands returns a copy of all commands, oldest first.
func (s *Store) ListCommands() []Command {
	s.commandsMu.RLock()
	defer s.commandsMu.RUnlock()
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// SendCommand records a new unacknowledged command. unitID is not checked
// against the known units.
func (s *Store) SendCommand(unitID, content string) Command {
	cmd := Command{
		ID:        s.newID(),
		UnitID:    unitID,
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	s.commandsMu.Lock()
	s.commands = append(s.commands, cmd)
	s.commandsMu.Unlock()
	return cmd
}

// AcknowledgeCommand marks the command acknowledged and stores response, or
// DefaultAckResponse when response is empty. An explicit empty response is
// treated like a missing one, so a stored response is never "". Repeated
// calls overwrite the response. Unknown ids return ErrCommandNotFound.
func (s *Store) AcknowledgeCommand(id, response string) (Command, error) {
	if response == "" {
		response = DefaultAckResponse
	}
	s.commandsMu.Lock()
	defer s.commandsMu.Unlock()
	for i := range s.commands {
		if s.commands[i].ID != id {
			continue
		}
		resp := response
		s.commands[i].Acknowledged = true
		s.commands[i].Response = &resp
		return s.commands[i], nil
	}
	return Command{}, fmt.Errorf("acknowledge %q: %w", id, ErrCommandNotFound)
}

// Stats returns collection sizes. Each count is read under its own lock, so
// the result is not a consistent cross-collection snapshot.
func (s *Store) Stats() Stats {
	var st Stats
	s.unitsMu.RLock()
	st.Units = len(s.units)
	s.unitsMu.RUnlock()

	s.spectrumMu.RLock()
	st.Spectrum = len(s.spectrum)
	s.spectrumMu.RUnlock()

	s.incidentsMu.RLock()
	st.Incidents = len(s.incidents)
	s.incidentsMu.RUnlock()

	s.commandsMu.RLock()
	st.Commands = len(s.commands)
	for _, c := range s.commands {
		if !c.Acknowledged {
			st.PendingCommands++
		}
	}
	s.commandsMu.RUnlock()
	return st
}
