package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/aman-zulfiqar/swap-ledger/internal/models"
	"github.com/aman-zulfiqar/swap-ledger/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type PubSubManager struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

var _ storage.EventPublisher = (*PubSubManager)(nil)

func NewPubSubManager(addr string, logger *logrus.Logger) *PubSubManager {
	return NewPubSubManagerFromClient(redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	}), logger)
}

func NewPubSubManagerFromClient(client redis.UniversalClient, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

// Channels lists every channel an event is published to.
func Channels(ev *models.LedgerEvent) []string {
	channels := []string{
		constants.PubSubChannelAll,
		KindChannel(ev.Kind),
	}
	for _, token := range ev.Tokens() {
		channels = append(channels, TokenChannel(token))
	}
	return channels
}

func KindChannel(kind models.EventKind) string {
	return constants.PubSubChannelPrefix + string(kind)
}

func TokenChannel(token string) string {
	return constants.PubSubTokenPrefix + token
}

// PublishEvent publishes one event to all of its channels in a single pipeline
func (p *PubSubManager) PublishEvent(ctx context.Context, ev *models.LedgerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.client.Pipeline()
	for _, channel := range Channels(ev) {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe delivers events from channel to handler until ctx is done
func (p *PubSubManager) Subscribe(ctx context.Context, channel string, handler storage.EventHandler) error {
	pubsub := p.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	p.logger.WithField("channel", channel).Info("subscribed")
	return p.consume(ctx, pubsub.Channel(), handler)
}

// PSubscribe is Subscribe for a channel pattern (e.g. "ledger:token:*")
func (p *PubSubManager) PSubscribe(ctx context.Context, pattern string, handler storage.EventHandler) error {
	pubsub := p.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	p.logger.WithField("pattern", pattern).Info("subscribed")
	return p.consume(ctx, pubsub.Channel(), handler)
}

func (p *PubSubManager) consume(ctx context.Context, ch <-chan *redis.Message, handler storage.EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.LedgerEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed event")
				continue
			}
			handler(&ev)
		}
	}
}

func (p *PubSubManager) Close() error {
	return p.client.Close()
}
