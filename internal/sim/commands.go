package sim

import (
	"errors"
	"log/slog"

	"cop-sim/internal/cop"
	"cop-sim/internal/metrics"
)

// Commander sends and acknowledges unit commands.
type Commander interface {
	SendCommand(unitID, content string) cop.Command
	AcknowledgeCommand(id, response string) (cop.Command, error)
}

// CommandDesk applies command operations to the store and publishes the
// resulting command to the feed.
type CommandDesk struct {
	store  *cop.Store
	feed   FeedWriter
	logger *slog.Logger
}

// NewCommandDesk returns a desk publishing to feed. A nil feed discards.
func NewCommandDesk(store *cop.Store, feed FeedWriter, logger *slog.Logger) *CommandDesk {
	if feed == nil {
		feed = NopWriter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandDesk{store: store, feed: feed, logger: logger}
}

// SendCommand appends a new unacknowledged command.
func (d *CommandDesk) SendCommand(unitID, content string) cop.Command {
	cmd := d.store.SendCommand(unitID, content)
	metrics.CommandsSent.Inc()
	d.logger.Info("command sent", "id", cmd.ID, "unit", cmd.UnitID)
	d.publish(cmd)
	return cmd
}

// AcknowledgeCommand marks a command acknowledged. Unknown ids yield
// cop.ErrCommandNotFound.
func (d *CommandDesk) AcknowledgeCommand(id, response string) (cop.Command, error) {
	cmd, err := d.store.AcknowledgeCommand(id, response)
	metrics.RecordAck(!errors.Is(err, cop.ErrCommandNotFound))
	if err != nil {
		return cop.Command{}, err
	}
	d.logger.Info("command acknowledged", "id", cmd.ID, "unit", cmd.UnitID, "response", *cmd.Response)
	d.publish(cmd)
	return cmd, nil
}

func (d *CommandDesk) publish(cmd cop.Command) {
	if err := d.feed.WriteCommand(cmd); err != nil {
		metrics.FeedWriteErrors.WithLabelValues(string(KindCommand)).Inc()
		d.logger.Warn("feed write failed", "kind", KindCommand, "err", err)
	}
}
