package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/application/dispatch"
)

type jobSubmitter interface {
	Submit(job dispatch.Job) error
}

// EventHandler queues domain events for background dispatch.
type EventHandler struct {
	runner jobSubmitter
}

func NewEventHandler(runner jobSubmitter) *EventHandler {
	return &EventHandler{runner: runner}
}

// Submit answers 202 once the event is queued. Delivery results are only logged.
func (h *EventHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var env dispatch.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := env.Job()
	if err != nil {
		httpError(w, err)
		return
	}
	if err := h.runner.Submit(job); err != nil {
		httpError(w, err)
		return
	}
	log.Debug().Str("event_id", job.Event.ID).Str("kind", string(job.Event.Kind)).Msg("event accepted")
	writeJSON(w, http.StatusAccepted, AcceptedEnvelope{Message: "accepted", EventID: job.Event.ID})
}
