package cop

import (
	"math/rand"
	"sync"
)

// Area is the simulated area of operations, a square box of SpanDeg degrees
// anchored at (MinLat, MinLon).
type Area struct {
	MinLat  float64
	MinLon  float64
	SpanDeg float64
}

// DefaultArea is the box used when no area is configured.
var DefaultArea = Area{MinLat: 38.9, MinLon: -77.0, SpanDeg: 0.2}

// DefaultDriftScale is the width of the uniform per-tick position offset.
const DefaultDriftScale = 0.01

// Contains reports whether lat/lon lies inside the box.
func (a Area) Contains(lat, lon float64) bool {
	return lat >= a.MinLat && lat <= a.MinLat+a.SpanDeg &&
		lon >= a.MinLon && lon <= a.MinLon+a.SpanDeg
}

// Generator produces the random values used by seeding and the tick routines.
// It is safe for concurrent use.
type Generator struct {
	mu         sync.Mutex
	rand       *rand.Rand
	area       Area
	driftScale float64
}

// NewGenerator creates a generator. A nil r seeds a fresh source.
func NewGenerator(r *rand.Rand, area Area, driftScale float64) *Generator {
	if r == nil {
		r = rand.New(rand.NewSource(rand.Int63()))
	}
	if area.SpanDeg <= 0 {
		area = DefaultArea
	}
	if driftScale <= 0 {
		driftScale = DefaultDriftScale
	}
	return &Generator{rand: r, area: area, driftScale: driftScale}
}

// Area returns the configured area of operations.
func (g *Generator) Area() Area {
	return g.area
}

// Position returns a uniformly random point inside the area.
func (g *Generator) Position() (lat, lon float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	lat = g.area.MinLat + g.rand.Float64()*g.area.SpanDeg
	lon = g.area.MinLon + g.rand.Float64()*g.area.SpanDeg
	return lat, lon
}

// Drift returns independent lat/lon offsets in [-driftScale/2, driftScale/2).
func (g *Generator) Drift() (dLat, dLon float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	dLat = (g.rand.Float64() - 0.5) * g.driftScale
	dLon = (g.rand.Float64() - 0.5) * g.driftScale
	return dLat, dLon
}

// Intensity returns a spectrum intensity in [0,1).
func (g *Generator) Intensity() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rand.Float64()
}

// IncidentType picks an incident type uniformly.
func (g *Generator) IncidentType() IncidentType {
	g.mu.Lock()
	defer g.mu.Unlock()
	return IncidentTypes[g.rand.Intn(len(IncidentTypes))]
}

// Severity flips a coin for MEDIUM, and a second coin for LOW or HIGH.
// MEDIUM comes out half the time, LOW and HIGH a quarter each.
func (g *Generator) Severity() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.coin() {
		return SeverityMedium
	}
	if g.coin() {
		return SeverityLow
	}
	return SeverityHigh
}

func (g *Generator) coin() bool {
	return g.rand.Intn(2) == 1
}
