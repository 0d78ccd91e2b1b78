package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/messages"
	"github.com/tuition-notify/internal/pkg/validate"
)

// Envelope is the wire form of an event submitted over Kafka or HTTP.
// Content is optional; without it the text is built from the event kind.
type Envelope struct {
	domain.Event
	ActorName  string          `json:"actor_name,omitempty"`
	Commenters []string        `json:"commenters,omitempty"`
	Content    *domain.Content `json:"content,omitempty"`
}

// ParseEnvelope decodes data and turns it into a job.
func ParseEnvelope(data []byte) (Job, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Job{}, fmt.Errorf("decode envelope: %w: %v", domain.ErrValidation, err)
	}
	return env.Job()
}

// Job validates the envelope and resolves its content.
func (e Envelope) Job() (Job, error) {
	if !e.Kind.Valid() {
		return Job{}, fmt.Errorf("unknown kind %q: %w", e.Kind, domain.ErrValidation)
	}
	ev := e.Event
	if len(e.Commenters) > 0 {
		ev.Subject.Commenters = domain.RefIDs(e.Commenters...)
	}

	content := messages.For(ev, e.ActorName)
	if e.Content != nil {
		content = *e.Content
	}
	if err := validate.Struct(content); err != nil {
		return Job{}, err
	}
	return Job{Event: ev, Content: content}, nil
}
