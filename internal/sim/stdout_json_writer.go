package sim

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"cop-sim/internal/cop"
)

// JSONStdoutWriter prints feed records as JSON lines to STDOUT.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return newJSONWriter(os.Stdout)
}

func newJSONWriter(out io.Writer) *JSONStdoutWriter {
	return &JSONStdoutWriter{enc: json.NewEncoder(out), now: time.Now}
}

func (w *JSONStdoutWriter) emit(kind Kind, v any) error {
	rec, err := NewRecord(kind, w.now(), v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(rec)
}

// WriteUnits outputs a unit snapshot.
func (w *JSONStdoutWriter) WriteUnits(units []cop.Unit) error { return w.emit(KindUnits, units) }

// WriteSpectrum outputs a spectrum set.
func (w *JSONStdoutWriter) WriteSpectrum(readings []cop.SpectrumActivity) error {
	return w.emit(KindSpectrum, readings)
}

// WriteIncident outputs an incident.
func (w *JSONStdoutWriter) WriteIncident(inc cop.Incident) error { return w.emit(KindIncident, inc) }

// WriteCommand outputs a command.
func (w *JSONStdoutWriter) WriteCommand(cmd cop.Command) error { return w.emit(KindCommand, cmd) }
