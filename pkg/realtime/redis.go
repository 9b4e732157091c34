package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/eventix-edge/pkg/config"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
	pkgredis "github.com/angelmondragon/eventix-edge/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

type redisConnection struct {
	key    string
	client *pkgredis.Client
	pubsub *goredis.PubSub
	reg    *registry
	logg   *logger.Logger

	startOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	closed  bool
	running bool
}

func dialRedis(ctx context.Context, key, cluster string, logg *logger.Logger) (*redisConnection, error) {
	client, err := pkgredis.New(ctx, config.RedisConfig{
		URL:          cluster,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, logg)
	if err != nil {
		return nil, fmt.Errorf("connecting realtime redis: %w", err)
	}
	ps, err := client.Subscribe(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisConnection{
		key:    key,
		client: client,
		pubsub: ps,
		reg:    newRegistry(logg),
		logg:   logg,
		done:   make(chan struct{}),
	}, nil
}

func (c *redisConnection) topic(channel string) string {
	return c.client.ChannelKey(c.key, channel)
}

func (c *redisConnection) logicalName(topic string) string {
	return strings.TrimPrefix(topic, c.key+":")
}

// start must be called with c.mu held.
func (c *redisConnection) start() {
	c.startOnce.Do(func() {
		c.running = true
		go c.receive()
	})
}

func (c *redisConnection) receive() {
	defer close(c.done)
	ctx := context.Background()
	for msg := range c.pubsub.Channel() {
		c.reg.deliver(ctx, c.logicalName(msg.Channel), []byte(msg.Payload))
	}
}

func (c *redisConnection) Subscribe(ctx context.Context, name string) (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	ch, created := c.reg.add(name)
	if !created {
		return ch, nil
	}
	if err := c.pubsub.Subscribe(ctx, c.topic(name)); err != nil {
		c.reg.remove(name)
		return nil, fmt.Errorf("subscribing %s: %w", name, err)
	}
	c.start()
	return ch, nil
}

func (c *redisConnection) Unsubscribe(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	ch, ok := c.reg.remove(name)
	if !ok {
		return nil
	}
	ch.UnbindAll()
	if err := c.pubsub.Unsubscribe(ctx, c.topic(name)); err != nil {
		return fmt.Errorf("unsubscribing %s: %w", name, err)
	}
	return nil
}

func (c *redisConnection) Publish(ctx context.Context, name, event string, payload any) error {
	body, err := EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.client.Publish(ctx, c.topic(name), body)
}

func (c *redisConnection) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	running := c.running
	for _, name := range c.reg.names() {
		if ch, ok := c.reg.remove(name); ok {
			ch.UnbindAll()
		}
	}
	c.mu.Unlock()

	psErr := c.pubsub.Close()
	if running {
		<-c.done
	}
	if err := c.client.Close(); err != nil {
		return err
	}
	return psErr
}
