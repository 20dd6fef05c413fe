package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"cop-sim/internal/cop"
)

type mockGreptimeClient struct {
	tables []*table.Table
	err    error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tables = append(m.tables, tables...)
	return &gpb.GreptimeResponse{}, nil
}

func TestGreptimeWriterUnits(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, logger: quietLogger()}
	units := []cop.Unit{
		{ID: "unit-1", Name: "Unit 1", Type: cop.UnitPolice, Latitude: 38.95, Longitude: -76.9, LastUpdated: time.Unix(0, 0)},
		{ID: "unit-2", Name: "Unit 2", Type: cop.UnitSensor, Latitude: 38.96, Longitude: -76.91, LastUpdated: time.Unix(0, 0)},
	}
	if err := w.WriteUnits(units); err != nil {
		t.Fatalf("WriteUnits: %v", err)
	}
	if len(m.tables) != 1 {
		t.Fatalf("expected one table, got %d", len(m.tables))
	}
	rows := m.tables[0].GetRows()
	if len(rows.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows.Rows))
	}
	if rows.Schema[0].Datatype != gpb.ColumnDataType_STRING {
		t.Fatalf("unit_id column type = %v", rows.Schema[0].Datatype)
	}
	if got := rows.Rows[1].Values[1].GetStringValue(); got != "SENSOR" {
		t.Fatalf("unit_type = %s, want SENSOR", got)
	}
	if got := rows.Rows[0].Values[3].GetF64Value(); got != 38.95 {
		t.Fatalf("lat = %v, want 38.95", got)
	}
}

func TestGreptimeWriterCommandResponse(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, logger: quietLogger()}
	if err := w.WriteCommand(cop.Command{ID: "c1", UnitID: "unit-1", Content: "Report"}); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	resp := "Holding"
	if err := w.WriteCommand(cop.Command{ID: "c1", UnitID: "unit-1", Content: "Report", Acknowledged: true, Response: &resp}); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	pending := m.tables[0].GetRows().Rows[0]
	if pending.Values[3].GetBoolValue() || pending.Values[4].GetStringValue() != "" {
		t.Fatalf("pending row = %v", pending)
	}
	acked := m.tables[1].GetRows().Rows[0]
	if !acked.Values[3].GetBoolValue() || acked.Values[4].GetStringValue() != "Holding" {
		t.Fatalf("acked row = %v", acked)
	}
}

func TestGreptimeWriterIncidentAndSpectrum(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, logger: quietLogger()}
	inc := cop.Incident{ID: "i1", Type: cop.IncidentInterference, Description: "Interference Detected", Severity: cop.SeverityLow, Timestamp: time.Unix(0, 0)}
	if err := w.WriteIncident(inc); err != nil {
		t.Fatalf("WriteIncident: %v", err)
	}
	if err := w.WriteSpectrum(nil); err != nil || len(m.tables) != 1 {
		t.Fatalf("empty spectrum should be skipped: %v", err)
	}
	if got := m.tables[0].GetRows().Rows[0].Values[3].GetStringValue(); got != "Interference Detected" {
		t.Fatalf("description = %q", got)
	}
}

func TestGreptimeWriterError(t *testing.T) {
	unavailable := errors.New("unavailable")
	m := &mockGreptimeClient{err: unavailable}
	w := &GreptimeDBWriter{client: m, logger: quietLogger()}
	err := w.WriteIncident(cop.Incident{ID: "i1", Timestamp: time.Unix(0, 0)})
	if !errors.Is(err, unavailable) {
		t.Fatalf("expected client error, got %v", err)
	}
	if !strings.Contains(err.Error(), "write "+TableIncidents+":") {
		t.Fatalf("error does not name the table: %v", err)
	}
}
