package liveevents

import (
	"context"
	"encoding/json"
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"go.uber.org/zap"
)

// Bridge relays change events between processes sharing one store over a
// Redis pub/sub channel. Events carrying the bridge's own origin are skipped.
type Bridge struct {
	client  *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

func NewBridge(client *redis.Client, channel, origin string, log *zap.Logger) *Bridge {
	if client == nil {
		return nil
	}
	return &Bridge{
		client:  client,
		channel: channel,
		origin:  origin,
		log:     log.Named("consumption.bridge"),
	}
}

func (b *Bridge) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Run delivers foreign events to handle until ctx is done. ready is closed
// once the subscription is confirmed.
func (b *Bridge) Run(ctx context.Context, ready chan<- struct{}, handle func(domain.ChangeEvent)) error {
	if b == nil {
		if ready != nil {
			close(ready)
		}
		return nil
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ready != nil {
			close(ready)
		}
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("bridge channel closed")
			}
			var event domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn("dropping undecodable event", zap.Error(err))
				continue
			}
			if event.Origin == b.origin {
				continue
			}
			handle(event)
		}
	}
}
