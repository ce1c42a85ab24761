package manager

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const (
	redisPublishTimeout = 2 * time.Second
	redisBufferSize     = 1024
)

// RedisPublisher fans task events out to a Redis pub/sub channel as JSON.
// Publish never blocks: events are buffered and dropped when the buffer is full.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

func NewRedisPublisher(client redis.UniversalClient, channel string, log zerolog.Logger) *RedisPublisher {
	p := &RedisPublisher{
		client:  client,
		channel: channel,
		log:     log,
		ch:      make(chan Event, redisBufferSize),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *RedisPublisher) Publish(e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- e:
	default:
		p.log.Debug().Str("event", e.Name).Str("task", e.TaskID).Msg("redis publisher buffer full, dropping event")
	}
}

func (p *RedisPublisher) loop() {
	defer close(p.done)
	for e := range p.ch {
		b, err := json.Marshal(e)
		if err != nil {
			p.log.Warn().Err(err).Str("event", e.Name).Msg("marshal event")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
		if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
			p.log.Warn().Err(err).Str("channel", p.channel).Msg("redis publish")
		}
		cancel()
	}
}

// Close flushes buffered events and stops the publisher. It does not close the client.
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()
	<-p.done
	return nil
}
