package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrChannelUnavailable means a channel has no usable transport; the channel is skipped.
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrChannelDelivery marks a failed send to a single recipient.
	ErrChannelDelivery = errors.New("channel delivery failed")
	// ErrPersistence marks a failed write or read against the notification store.
	ErrPersistence = errors.New("persistence failure")
)
