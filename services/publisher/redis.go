package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"sjsage522/producttracker/logger"
	"sjsage522/producttracker/pkg/errors"
)

// PayloadField is the stream entry field holding the base64 encoded event
const PayloadField = "b64_event"

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	stream          string
	streamMaxLength int64
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, stream string, streamMaxLength int64) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		stream:          stream,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// Encode renders an event as the base64 JSON payload stored in the stream
func Encode(event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode reverses Encode
func Decode(payload string) (Event, error) {
	var event Event
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return event, err
	}
	err = json.Unmarshal(data, &event)
	return event, err
}

// Publish appends the event to the stream, capping it approximately at the
// configured length.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return errors.NewPublisher("redis", "failed to encode event", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type":       event.Type,
			PayloadField: payload,
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = p.streamMaxLength
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return errors.NewPublisher("redis", "failed to publish "+event.Type, err)
	}
	p.log.Debug().Str("stream", p.stream).Str("type", event.Type).Msg("Published event")
	return nil
}

// TrimStreams trims the stream to exactly the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	if err := p.client.XTrimMaxLen(ctx, p.stream, p.streamMaxLength).Err(); err != nil {
		return errors.NewPublisher("redis", "failed to trim "+p.stream, err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
