package consumption

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lubeqc/internal/config"
	"github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/consumption/liveevents"
	"github.com/smallbiznis/lubeqc/internal/consumption/repository"
	"github.com/smallbiznis/lubeqc/internal/consumption/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("consumption.service",
	fx.Provide(NewOrigin),
	fx.Provide(liveevents.NewHub),
	fx.Provide(NewBridge),
	fx.Provide(NewNotifier),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(RunBridge),
)

// NewOrigin tags every event this process publishes.
func NewOrigin() domain.Origin {
	return domain.Origin(ulid.Make().String())
}

// NewBridge returns nil when redis is not configured.
func NewBridge(cfg config.Config, client *redis.Client, origin domain.Origin, log *zap.Logger) *liveevents.Bridge {
	return liveevents.NewBridge(client, cfg.Redis.Channel, string(origin), log)
}

// NewNotifier exposes the bridge to the service; nil keeps changes local.
func NewNotifier(bridge *liveevents.Bridge) domain.Notifier {
	if bridge == nil {
		return nil
	}
	return bridge
}

// RunBridge applies changes published by other processes for the lifetime of
// the app.
func RunBridge(lc fx.Lifecycle, bridge *liveevents.Bridge, svc domain.Service, log *zap.Logger) {
	if bridge == nil {
		return
	}
	log = log.Named("consumption.bridge")

	var (
		cancel context.CancelFunc
		done   = make(chan struct{})
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			ready := make(chan struct{})
			go func() {
				defer close(done)
				err := bridge.Run(ctx, ready, func(event domain.ChangeEvent) {
					if err := svc.ApplyExternal(ctx, event); err != nil {
						log.Warn("apply external change", zap.Error(err), zap.String("event_id", event.ID))
					}
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Error("change bridge stopped", zap.Error(err))
				}
			}()
			select {
			case <-ready:
			case <-time.After(2 * time.Second):
				log.Warn("change bridge subscription not confirmed yet")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
