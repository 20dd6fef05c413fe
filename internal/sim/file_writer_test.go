package sim

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"cop-sim/internal/cop"
)

func TestFileWriterReplaysToEqualSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	store := newSimStore()
	desk := NewCommandDesk(store, fw, nil)
	s := NewScheduler(store, fw, Intervals{}, quietLogger())

	s.DriftUnits()
	s.RefreshSpectrum()
	s.SpawnIncident()
	cmd := desk.SendCommand("unit-2", "Move north")
	if _, err := desk.AcknowledgeCommand(cmd.ID, ""); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := &recordWriter{}
	if err := ReplayLogFile(path, got, 0); err != nil {
		t.Fatalf("ReplayLogFile: %v", err)
	}
	if len(got.units) != 1 || len(got.units[0]) != cop.SeedUnitCount {
		t.Fatalf("units not replayed: %+v", got.units)
	}
	units := store.ListUnits()
	for i, u := range got.units[0] {
		if u.ID != units[i].ID || u.Latitude != units[i].Latitude || !u.LastUpdated.Equal(units[i].LastUpdated) {
			t.Fatalf("unit %d mismatch: %+v vs %+v", i, u, units[i])
		}
	}
	if len(got.spectrum) != 1 || len(got.spectrum[0]) != len(cop.Bands) {
		t.Fatalf("spectrum not replayed: %+v", got.spectrum)
	}
	inc := store.ListIncidents()[0]
	if len(got.incidents) != 1 || got.incidents[0].ID != inc.ID || got.incidents[0].Severity != inc.Severity {
		t.Fatalf("incident mismatch: %+v vs %+v", got.incidents, inc)
	}
	if len(got.commands) != 2 {
		t.Fatalf("expected send and ack records, got %d", len(got.commands))
	}
	if got.commands[0].Response != nil || got.commands[0].Acknowledged {
		t.Fatalf("pending command replayed with response: %+v", got.commands[0])
	}
	if r := got.commands[1].Response; r == nil || *r != cop.DefaultAckResponse {
		t.Fatalf("ack response not replayed: %+v", got.commands[1])
	}
}

func TestFileWriterEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	fw.now = func() time.Time { return time.Unix(60, 0) }
	if err := fw.WriteIncident(cop.Incident{ID: "i1", Type: cop.IncidentInterference}); err != nil {
		t.Fatalf("write: %v", err)
	}
	fw.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("empty file")
	}
	var raw map[string]any
	if err := json.Unmarshal(sc.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw["kind"] != "incident" || raw["ts"] != "1970-01-01T00:01:00Z" {
		t.Fatalf("unexpected envelope: %v", raw)
	}
	data, _ := raw["data"].(map[string]any)
	if data["id"] != "i1" || data["type"] != "INTERFERENCE" {
		t.Fatalf("unexpected data: %v", data)
	}
	if !strings.HasSuffix(sc.Text(), "}") {
		t.Fatalf("line not a single object: %s", sc.Text())
	}
}

func TestNewFileWriterBadPath(t *testing.T) {
	if _, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "feed.jsonl")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
