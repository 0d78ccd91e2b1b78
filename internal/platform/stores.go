// Package platform opens the configured storage backend for the binaries.
package platform

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/application/notification"
	"github.com/tuition-notify/internal/application/recipient"
	"github.com/tuition-notify/internal/config"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/infrastructure/dynamo"
	"github.com/tuition-notify/internal/infrastructure/memory"
	mongoinfra "github.com/tuition-notify/internal/infrastructure/mongo"
)

// NotificationStore is a notification store that can also repair legacy kinds.
type NotificationStore interface {
	notification.Store
	RepairKinds(ctx context.Context) (int64, error)
}

// UserDirectory is read by the resolver and written by the preference service.
type UserDirectory interface {
	recipient.Directory
	UpdatePreferences(ctx context.Context, userID string, upd domain.PreferenceUpdate) (*domain.User, error)
}

// Stores is an opened backend.
type Stores struct {
	Notifications NotificationStore
	Users         UserDirectory
	HealthChecks  map[string]func(context.Context) error
	Close         func(context.Context) error
}

// OpenStores connects to cfg.Store and prepares its schema: indexes on Mongo,
// tables on DynamoDB. Schema failures are logged, not returned.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, err := mongoinfra.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		ns := mongoinfra.NewNotificationStore(db)
		if err := ns.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("could not ensure notification indexes")
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo connected")
		return &Stores{
			Notifications: ns,
			Users:         mongoinfra.NewDirectory(db),
			HealthChecks:  map[string]func(context.Context) error{"mongo": mongoinfra.Healthcheck(client)},
			Close:         client.Disconnect,
		}, nil

	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := dynamo.Bootstrap(ctx, client, cfg.DynamoTables); err != nil {
			log.Warn().Err(err).Msg("could not bootstrap dynamo tables")
		}
		return &Stores{
			Notifications: dynamo.NewNotificationStore(client, cfg.DynamoTables.Notifications),
			Users:         dynamo.NewDirectory(client, cfg.DynamoTables.Users),
			Close:         func(context.Context) error { return nil },
		}, nil
	}

	log.Warn().Msg("using in-memory notification store, data is lost on restart")
	return &Stores{
		Notifications: memory.NewNotificationStore(),
		Users:         memory.NewDirectory(),
		Close:         func(context.Context) error { return nil },
	}, nil
}
