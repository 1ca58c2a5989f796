package mqtt

import (
	"encoding/json"

	"github.com/nerrad567/modemsim/internal/events"
	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
)

// Publisher adapts a Client to the events.Sink interface.
//
// Each event is published as JSON on modemsim/event/<kind>. Reboot
// events additionally refresh the retained status topic, so subscribers
// always know the current generation and device path. Publish failures
// are logged at debug level and dropped: the broker is an observer, not
// part of the protocol.
type Publisher struct {
	client *Client
	logger *logging.Logger
}

// NewPublisher creates a Publisher over a connected client.
func NewPublisher(client *Client, logger *logging.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Emit implements events.Sink.
func (p *Publisher) Emit(e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Debug("event marshal failed", "event_id", e.ID, "error", err)
		return
	}

	if err := p.client.Publish(Topics{}.Event(string(e.Kind)), payload, byte(p.client.cfg.QoS), false); err != nil {
		p.logger.Debug("event publish failed", "event_id", e.ID, "error", err)
	}

	if e.Kind == events.KindReboot {
		if err := p.client.PublishStatus(e.Generation, e.PeerPath); err != nil {
			p.logger.Debug("status publish failed", "error", err)
		}
	}
}
