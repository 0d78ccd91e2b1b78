package http

import (
	"context"

	"github.com/tuition-notify/internal/application/dispatch"
	"github.com/tuition-notify/internal/application/notification"
	"github.com/tuition-notify/internal/application/preference"
	jwtinfra "github.com/tuition-notify/internal/infrastructure/jwt"
)

// JobSubmitter queues events for background dispatch.
type JobSubmitter interface {
	Submit(job dispatch.Job) error
}

// Deps holds the application services the router exposes.
type Deps struct {
	Notifications notification.Service
	Preferences   preference.Service
	Runner        JobSubmitter
	JWTProvider   *jwtinfra.Provider
	// HealthChecks run on /health-check/ready, keyed by dependency name.
	HealthChecks map[string]func(context.Context) error
}
