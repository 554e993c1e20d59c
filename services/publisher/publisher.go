package publisher

import (
	"encoding/json"

	"sjsage522/catalogworker/pkg/errors"
)

// ChangeKey is the stream field that carries a base64 encoded ChangeEvent
const ChangeKey = "b64_change"

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to a stream
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// ChangeEvent announces a record that was inserted or updated in the catalog
type ChangeEvent struct {
	Action  string   `json:"action"`
	Brand   string   `json:"brand"`
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Changed []string `json:"changed,omitempty"`
}

// PublishChange encodes ev and publishes it under ChangeKey
func PublishChange(p Publisher, ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.NewPublisher(ev.URL, "failed to encode change", err)
	}
	if err := p.Publish(ChangeKey, data); err != nil {
		return errors.NewPublisher(ev.URL, "failed to publish change", err)
	}
	return nil
}
