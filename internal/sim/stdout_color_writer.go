// ColorStdoutWriter prints human-friendly, colorized feed lines to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"cop-sim/internal/config"
	"cop-sim/internal/cop"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorGray    = "\x1b[90m"
)

func unitTypeColor(t cop.UnitType) string {
	switch t {
	case cop.UnitMilitary:
		return colorGreen
	case cop.UnitPolice:
		return colorBlue
	case cop.UnitSensor:
		return colorMagenta
	default:
		return colorWhite
	}
}

func severityColor(s string) string {
	switch s {
	case cop.SeverityHigh:
		return colorRed
	case cop.SeverityMedium:
		return colorYellow
	default:
		return colorGreen
	}
}

func bandColor(b cop.Band) string {
	switch b {
	case cop.BandVHF:
		return colorCyan
	case cop.BandUHF:
		return colorBlue
	default:
		return colorMagenta
	}
}

// intensityBar renders v in [0,1] as a bar of width cells.
func intensityBar(v float64, width int) string {
	n := int(v*float64(width) + 0.5)
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return strings.Repeat("█", n) + strings.Repeat("·", width-n)
}

func stamp(ts time.Time) string {
	return fmt.Sprintf("%s[%s]%s", colorGray, ts.Format(time.RFC3339), colorReset)
}

func unitLine(u cop.Unit) string {
	return fmt.Sprintf("%s %sUNIT%s %sid=%s%s name=%q %stype=%s%s %slat=%.5f%s %slon=%.5f%s",
		stamp(u.LastUpdated), colorBlue, colorReset,
		colorWhite, u.ID, colorReset, u.Name,
		unitTypeColor(u.Type), u.Type, colorReset,
		colorGreen, u.Latitude, colorReset,
		colorYellow, u.Longitude, colorReset)
}

func spectrumLine(a cop.SpectrumActivity) string {
	return fmt.Sprintf("%s %sSPECTRUM%s %sband=%s%s %s %.2f %slat=%.5f%s %slon=%.5f%s",
		stamp(a.Timestamp), colorCyan, colorReset,
		bandColor(a.Band), a.Band, colorReset,
		intensityBar(a.Intensity, 10), a.Intensity,
		colorGreen, a.Latitude, colorReset,
		colorYellow, a.Longitude, colorReset)
}

func incidentLine(i cop.Incident) string {
	return fmt.Sprintf("%s %sINCIDENT%s %sseverity=%s%s type=%s %q %slat=%.5f%s %slon=%.5f%s",
		stamp(i.Timestamp), colorRed, colorReset,
		severityColor(i.Severity), i.Severity, colorReset,
		i.Type, i.Description,
		colorGreen, i.Latitude, colorReset,
		colorYellow, i.Longitude, colorReset)
}

func commandLine(c cop.Command) string {
	state := fmt.Sprintf("%spending%s", colorYellow, colorReset)
	if c.Acknowledged && c.Response != nil {
		state = fmt.Sprintf("%sack=%q%s", colorGreen, *c.Response, colorReset)
	}
	return fmt.Sprintf("%s %sCOMMAND%s id=%s %sunit=%s%s %q %s",
		stamp(c.Timestamp), colorMagenta, colorReset,
		c.ID, colorWhite, c.UnitID, colorReset, c.Content, state)
}

// ColorStdoutWriter prints feed records using ANSI colors.
type ColorStdoutWriter struct {
	cfg  *config.SimulationConfig
	out  io.Writer
	mu   sync.Mutex
	once sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.SimulationConfig) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	fmt.Fprintln(w.out, "Simulation Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	a := w.cfg.Area
	fmt.Fprintf(tw, "Area:\t%.3f,%.3f .. %.3f,%.3f\n", a.MinLat, a.MinLon, a.MinLat+a.SpanDeg, a.MinLon+a.SpanDeg)
	fmt.Fprintf(tw, "Drift Scale:\t%.4f\n", w.cfg.DriftScale)
	fmt.Fprintf(tw, "Unit Drift:\t%s\n", w.cfg.Intervals.UnitDrift)
	fmt.Fprintf(tw, "Spectrum Refresh:\t%s\n", w.cfg.Intervals.SpectrumRefresh)
	fmt.Fprintf(tw, "Incident Spawn:\t%s\n", w.cfg.Intervals.IncidentSpawn)
	fmt.Fprintf(tw, "API:\t%s\n", w.cfg.Server.Addr)
	tw.Flush()
	fmt.Fprintln(w.out)
}

func (w *ColorStdoutWriter) print(lines ...string) {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, l := range lines {
		fmt.Fprintln(w.out, l)
	}
}

// WriteUnits prints one line per unit.
func (w *ColorStdoutWriter) WriteUnits(units []cop.Unit) error {
	lines := make([]string, 0, len(units))
	for _, u := range units {
		lines = append(lines, unitLine(u))
	}
	w.print(lines...)
	return nil
}

// WriteSpectrum prints one line per band reading.
func (w *ColorStdoutWriter) WriteSpectrum(readings []cop.SpectrumActivity) error {
	lines := make([]string, 0, len(readings))
	for _, a := range readings {
		lines = append(lines, spectrumLine(a))
	}
	w.print(lines...)
	return nil
}

// WriteIncident prints an incident.
func (w *ColorStdoutWriter) WriteIncident(inc cop.Incident) error {
	w.print(incidentLine(inc))
	return nil
}

// WriteCommand prints a command and its acknowledgement state.
func (w *ColorStdoutWriter) WriteCommand(cmd cop.Command) error {
	w.print(commandLine(cmd))
	return nil
}
