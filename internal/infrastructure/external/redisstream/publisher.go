package redisstream

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

// Config holds Redis connection and stream settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen caps the stream length with approximate trimming; 0 disables trimming
	MaxLen int64
}

// streamClient is the subset of redis.UniversalClient the publisher uses
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Publisher implements port.StreamPublisher on Redis streams
type Publisher struct {
	client streamClient
	maxLen int64
	logger *zap.Logger
}

// NewPublisher connects to Redis and verifies the connection
func NewPublisher(ctx context.Context, cfg Config, logger *zap.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return newPublisher(client, cfg.MaxLen, logger), nil
}

func newPublisher(client streamClient, maxLen int64, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, maxLen: maxLen, logger: logger}
}

// Publish appends values to stream and returns the entry id
func (p *Publisher) Publish(ctx context.Context, stream string, values map[string]any) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		p.logger.Error("Failed to publish to stream",
			zap.String("stream", stream),
			zap.Error(err))
		return "", fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return id, nil
}

// Ping checks the connection
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Verify interface compliance
var _ port.StreamPublisher = (*Publisher)(nil)
