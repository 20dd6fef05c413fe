package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"cop-sim/internal/cop"
)

// Table names written by GreptimeDBWriter.
const (
	TableUnits     = "cop_units"
	TableSpectrum  = "cop_spectrum"
	TableIncidents = "cop_incidents"
	TableCommands  = "cop_commands"
)

const greptimeWriteTimeout = 5 * time.Second

// greptimeClient is the subset of the ingester client the writer needs.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes the feed to GreptimeDB via the ingester client.
// Tables are created on first write.
type GreptimeDBWriter struct {
	client greptimeClient
	logger *slog.Logger
}

// NewGreptimeDBWriter connects to the GreptimeDB gRPC endpoint.
func NewGreptimeDBWriter(endpoint string, port int, database string, logger *slog.Logger) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(endpoint).WithDatabase(database)
	if port > 0 {
		cfg = cfg.WithPort(port)
	}
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GreptimeDBWriter{client: client, logger: logger.With("writer", "greptimedb")}, nil
}

func (w *GreptimeDBWriter) write(name string, tbl *table.Table) error {
	ctx, cancel := context.WithTimeout(context.Background(), greptimeWriteTimeout)
	defer cancel()
	resp, err := w.client.Write(ctx, tbl)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if w.logger != nil {
		w.logger.Debug("rows written", "table", name, "affected", resp.GetAffectedRows().GetValue())
	}
	return nil
}

// newTable builds a table with the given tag and field columns followed by
// the ts time index.
func newTable(name string, tags, fields []column) (*table.Table, error) {
	tbl, err := table.New(name)
	if err != nil {
		return nil, err
	}
	for _, c := range tags {
		if err := tbl.AddTagColumn(c.name, c.typ); err != nil {
			return nil, err
		}
	}
	for _, c := range fields {
		if err := tbl.AddFieldColumn(c.name, c.typ); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}

type column struct {
	name string
	typ  types.ColumnType
}

// WriteUnits inserts one row per unit.
func (w *GreptimeDBWriter) WriteUnits(units []cop.Unit) error {
	if len(units) == 0 {
		return nil
	}
	tbl, err := newTable(TableUnits,
		[]column{{"unit_id", types.STRING}, {"unit_type", types.STRING}},
		[]column{{"name", types.STRING}, {"lat", types.FLOAT64}, {"lon", types.FLOAT64}})
	if err != nil {
		return err
	}
	for _, u := range units {
		if err := tbl.AddRow(u.ID, string(u.Type), u.Name, u.Latitude, u.Longitude, u.LastUpdated); err != nil {
			return err
		}
	}
	return w.write(TableUnits, tbl)
}

// WriteSpectrum inserts one row per band reading.
func (w *GreptimeDBWriter) WriteSpectrum(readings []cop.SpectrumActivity) error {
	if len(readings) == 0 {
		return nil
	}
	tbl, err := newTable(TableSpectrum,
		[]column{{"band", types.STRING}},
		[]column{{"reading_id", types.STRING}, {"intensity", types.FLOAT64}, {"lat", types.FLOAT64}, {"lon", types.FLOAT64}})
	if err != nil {
		return err
	}
	for _, a := range readings {
		if err := tbl.AddRow(string(a.Band), a.ID, a.Intensity, a.Latitude, a.Longitude, a.Timestamp); err != nil {
			return err
		}
	}
	return w.write(TableSpectrum, tbl)
}

// WriteIncident inserts an incident row.
func (w *GreptimeDBWriter) WriteIncident(inc cop.Incident) error {
	tbl, err := newTable(TableIncidents,
		[]column{{"incident_id", types.STRING}},
		[]column{{"incident_type", types.STRING}, {"severity", types.STRING}, {"description", types.STRING},
			{"lat", types.FLOAT64}, {"lon", types.FLOAT64}})
	if err != nil {
		return err
	}
	if err := tbl.AddRow(inc.ID, string(inc.Type), inc.Severity, inc.Description, inc.Latitude, inc.Longitude, inc.Timestamp); err != nil {
		return err
	}
	return w.write(TableIncidents, tbl)
}

// WriteCommand upserts a command row keyed by command id and send time, so
// an acknowledgement overwrites the pending row.
func (w *GreptimeDBWriter) WriteCommand(cmd cop.Command) error {
	tbl, err := newTable(TableCommands,
		[]column{{"command_id", types.STRING}, {"unit_id", types.STRING}},
		[]column{{"content", types.STRING}, {"acknowledged", types.BOOLEAN}, {"response", types.STRING}})
	if err != nil {
		return err
	}
	response := ""
	if cmd.Response != nil {
		response = *cmd.Response
	}
	if err := tbl.AddRow(cmd.ID, cmd.UnitID, cmd.Content, cmd.Acknowledged, response, cmd.Timestamp); err != nil {
		return err
	}
	return w.write(TableCommands, tbl)
}
