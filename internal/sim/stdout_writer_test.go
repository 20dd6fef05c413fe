package sim

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"cop-sim/internal/config"
	"cop-sim/internal/cop"
)

func TestJSONStdoutWriterOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	w := newJSONWriter(&buf)
	w.now = func() time.Time { return time.Unix(0, 0) }
	if err := w.WriteSpectrum([]cop.SpectrumActivity{{ID: "s1", Band: cop.BandVHF}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp := "ok"
	if err := w.WriteCommand(cop.Command{ID: "c1", Response: &resp, Acknowledged: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"kind":"spectrum"`) || !strings.Contains(lines[0], `"band":"VHF"`) {
		t.Fatalf("unexpected spectrum line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"response":"ok"`) {
		t.Fatalf("unexpected command line: %s", lines[1])
	}
}

func TestColorStdoutWriterOverviewOnce(t *testing.T) {
	var buf bytes.Buffer
	w := &ColorStdoutWriter{cfg: config.Default(), out: &buf}
	ts := time.Unix(0, 0).UTC()
	if err := w.WriteIncident(cop.Incident{ID: "i1", Type: cop.IncidentSignalJamming, Description: "Signal Jamming Detected", Severity: cop.SeverityHigh, Timestamp: ts}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteUnits([]cop.Unit{{ID: "unit-1", Type: cop.UnitPolice, LastUpdated: ts}, {ID: "unit-2", Type: cop.UnitSensor, LastUpdated: ts}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "Simulation Configuration:") != 1 {
		t.Fatalf("overview should print once:\n%s", out)
	}
	if !strings.Contains(out, "Signal Jamming Detected") || !strings.Contains(out, colorRed+"severity=HIGH") {
		t.Fatalf("incident line missing or uncolored:\n%s", out)
	}
	if strings.Count(out, "UNIT") != 2 {
		t.Fatalf("expected one line per unit:\n%s", out)
	}
}

func TestCommandLineShowsAckState(t *testing.T) {
	c := cop.Command{ID: "c1", UnitID: "unit-1", Content: "Report"}
	if !strings.Contains(commandLine(c), "pending") {
		t.Fatalf("pending command line: %s", commandLine(c))
	}
	r := "Done"
	c.Acknowledged, c.Response = true, &r
	if !strings.Contains(commandLine(c), `ack="Done"`) {
		t.Fatalf("acked command line: %s", commandLine(c))
	}
}

func TestIntensityBar(t *testing.T) {
	cases := map[float64]string{0: "··········", 1: "██████████", 0.5: "█████·····", 2: "██████████"}
	for v, want := range cases {
		if got := intensityBar(v, 10); got != want {
			t.Errorf("intensityBar(%v) = %q, want %q", v, got, want)
		}
	}
}
