package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/application/dispatch"
	"github.com/tuition-notify/internal/domain"
)

// httpError maps domain sentinels to status codes. Unknown errors are logged
// and reported as 500 without their text.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrChannelUnavailable),
		errors.Is(err, dispatch.ErrQueueFull),
		errors.Is(err, dispatch.ErrRunnerStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
