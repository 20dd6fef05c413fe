package sim

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// ReplayLog replays feed records from r to writer. A speed >0 accelerates playback.
// If speed <= 0, no artificial delay is inserted.
func ReplayLog(r io.Reader, writer FeedWriter, speed float64) error {
	return replay(r, writer, speed, time.Sleep)
}

func replay(r io.Reader, writer FeedWriter, speed float64, sleep func(time.Duration)) error {
	dec := json.NewDecoder(r)
	var prev time.Time
	for n := 1; ; n++ {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("record %d: %w", n, err)
		}
		if !prev.IsZero() && speed > 0 {
			diff := rec.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				sleep(diff)
			}
		}
		if err := Dispatch(rec, writer); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		prev = rec.Timestamp
	}
}

// ReplayLogFile opens a file and replays its records.
func ReplayLogFile(path string, writer FeedWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}
