package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/nats-io/nats.go"
)

type natsConnection struct {
	key  string
	nc   *nats.Conn
	reg  *registry
	logg *logger.Logger

	mu     sync.Mutex
	subs   map[string]*nats.Subscription
	closed bool
}

func dialNATS(key, cluster string, logg *logger.Logger) (*natsConnection, error) {
	nc, err := nats.Connect(cluster,
		nats.Name("eventix-edge"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logg.Error(context.Background(), "realtime.nats_disconnected", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logg.Info(logg.WithField(context.Background(), "url", conn.ConnectedUrl()), "realtime.nats_reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting realtime nats: %w", err)
	}
	return &natsConnection{
		key:  key,
		nc:   nc,
		reg:  newRegistry(logg),
		logg: logg,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// subject maps a logical channel onto a NATS subject: "<key>.<channel>".
func (c *natsConnection) subject(channel string) string {
	return strings.Join([]string{c.key, channel}, ".")
}

func (c *natsConnection) Subscribe(ctx context.Context, name string) (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	ch, created := c.reg.add(name)
	if !created {
		return ch, nil
	}
	sub, err := c.nc.Subscribe(c.subject(name), func(msg *nats.Msg) {
		c.reg.deliver(context.Background(), name, msg.Data)
	})
	if err != nil {
		c.reg.remove(name)
		return nil, fmt.Errorf("subscribing %s: %w", name, err)
	}
	c.subs[name] = sub
	return ch, nil
}

func (c *natsConnection) Unsubscribe(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if ch, ok := c.reg.remove(name); ok {
		ch.UnbindAll()
	}
	sub, ok := c.subs[name]
	if !ok {
		return nil
	}
	delete(c.subs, name)
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribing %s: %w", name, err)
	}
	return nil
}

func (c *natsConnection) Publish(ctx context.Context, name, event string, payload any) error {
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
	if err := c.nc.Publish(c.subject(name), body); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); ok {
		return c.nc.FlushWithContext(ctx)
	}
	return c.nc.FlushTimeout(5 * time.Second)
}

func (c *natsConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for name := range c.subs {
		if ch, ok := c.reg.remove(name); ok {
			ch.UnbindAll()
		}
	}
	c.subs = map[string]*nats.Subscription{}
	c.nc.Close()
	return nil
}
