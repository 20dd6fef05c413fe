package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"cop-sim/internal/cop"
)

// FeedWriter receives every state change the simulator publishes.
type FeedWriter interface {
	WriteUnits([]cop.Unit) error
	WriteSpectrum([]cop.SpectrumActivity) error
	WriteIncident(cop.Incident) error
	WriteCommand(cop.Command) error
}

// StatusWriter is implemented by writers that show whether the HTTP API is listening.
type StatusWriter interface {
	SetAPIStatus(listening bool)
}

// CommandController is implemented by writers that can issue commands themselves.
type CommandController interface {
	SetCommander(Commander)
}

// Kind tags a feed record.
type Kind string

const (
	KindUnits    Kind = "units"
	KindSpectrum Kind = "spectrum"
	KindIncident Kind = "incident"
	KindCommand  Kind = "command"
)

// Record is the JSONL envelope used by the stdout and file writers and read
// back by ReplayLog.
type Record struct {
	Kind      Kind            `json:"kind"`
	Timestamp time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

// NewRecord marshals v into a record of the given kind.
func NewRecord(kind Kind, ts time.Time, v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return Record{Kind: kind, Timestamp: ts.UTC(), Data: data}, nil
}

// Dispatch decodes rec and hands it to the matching method of w.
func Dispatch(rec Record, w FeedWriter) error {
	switch rec.Kind {
	case KindUnits:
		var units []cop.Unit
		if err := json.Unmarshal(rec.Data, &units); err != nil {
			return fmt.Errorf("decode units: %w", err)
		}
		return w.WriteUnits(units)
	case KindSpectrum:
		var readings []cop.SpectrumActivity
		if err := json.Unmarshal(rec.Data, &readings); err != nil {
			return fmt.Errorf("decode spectrum: %w", err)
		}
		return w.WriteSpectrum(readings)
	case KindIncident:
		var inc cop.Incident
		if err := json.Unmarshal(rec.Data, &inc); err != nil {
			return fmt.Errorf("decode incident: %w", err)
		}
		return w.WriteIncident(inc)
	case KindCommand:
		var cmd cop.Command
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return fmt.Errorf("decode command: %w", err)
		}
		return w.WriteCommand(cmd)
	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
}

// NopWriter discards everything.
type NopWriter struct{}

func (NopWriter) WriteUnits([]cop.Unit) error                { return nil }
func (NopWriter) WriteSpectrum([]cop.SpectrumActivity) error { return nil }
func (NopWriter) WriteIncident(cop.Incident) error           { return nil }
func (NopWriter) WriteCommand(cop.Command) error             { return nil }

// MultiWriter fans out feed writes to multiple writers. Every writer sees
// every write; failures are joined into the returned error.
type MultiWriter struct {
	writers []FeedWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(writers ...FeedWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Add appends a writer. Not safe for use once writes have started.
func (mw *MultiWriter) Add(w FeedWriter) {
	mw.writers = append(mw.writers, w)
}

// Len reports the number of writers.
func (mw *MultiWriter) Len() int { return len(mw.writers) }

func (mw *MultiWriter) each(fn func(FeedWriter) error) error {
	var errs []error
	for _, w := range mw.writers {
		if err := fn(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteUnits sends a unit snapshot to all writers.
func (mw *MultiWriter) WriteUnits(units []cop.Unit) error {
	return mw.each(func(w FeedWriter) error { return w.WriteUnits(units) })
}

// WriteSpectrum sends a spectrum set to all writers.
func (mw *MultiWriter) WriteSpectrum(readings []cop.SpectrumActivity) error {
	return mw.each(func(w FeedWriter) error { return w.WriteSpectrum(readings) })
}

// WriteIncident sends an incident to all writers.
func (mw *MultiWriter) WriteIncident(inc cop.Incident) error {
	return mw.each(func(w FeedWriter) error { return w.WriteIncident(inc) })
}

// WriteCommand sends a command to all writers.
func (mw *MultiWriter) WriteCommand(cmd cop.Command) error {
	return mw.each(func(w FeedWriter) error { return w.WriteCommand(cmd) })
}

// SetAPIStatus forwards to writers implementing StatusWriter.
func (mw *MultiWriter) SetAPIStatus(listening bool) {
	for _, w := range mw.writers {
		if sw, ok := w.(StatusWriter); ok {
			sw.SetAPIStatus(listening)
		}
	}
}

// SetCommander forwards to writers implementing CommandController.
func (mw *MultiWriter) SetCommander(c Commander) {
	for _, w := range mw.writers {
		if cc, ok := w.(CommandController); ok {
			cc.SetCommander(c)
		}
	}
}

// Close closes every writer that has a Close method and returns the first error.
func (mw *MultiWriter) Close() error {
	var first error
	for _, w := range mw.writers {
		if c, ok := w.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
