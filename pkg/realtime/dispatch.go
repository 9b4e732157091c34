package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/angelmondragon/eventix-edge/pkg/logger"
)

// channel is the dispatch table shared by every driver: event name -> handler.
type channel struct {
	name string

	mu       sync.RWMutex
	handlers map[string]Handler
}

func newChannel(name string) *channel {
	return &channel{name: name, handlers: make(map[string]Handler)}
}

func (c *channel) Name() string {
	return c.name
}

// Bind replaces any previous handler for the event.
func (c *channel) Bind(event string, handler Handler) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	c.handlers[event] = handler
	c.mu.Unlock()
}

func (c *channel) UnbindAll() {
	c.mu.Lock()
	c.handlers = make(map[string]Handler)
	c.mu.Unlock()
}

func (c *channel) handler(event string) Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers[event]
}

// registry tracks the channels subscribed on one connection.
type registry struct {
	logg *logger.Logger

	mu       sync.RWMutex
	channels map[string]*channel
}

func newRegistry(logg *logger.Logger) *registry {
	return &registry{logg: logg, channels: make(map[string]*channel)}
}

// add returns the existing channel when already subscribed.
func (r *registry) add(name string) (*channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.channels[name]; ok {
		return existing, false
	}
	ch := newChannel(name)
	r.channels[name] = ch
	return ch, true
}

func (r *registry) remove(name string) (*channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[name]
	if ok {
		delete(r.channels, name)
	}
	return ch, ok
}

func (r *registry) get(name string) *channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[name]
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.channels))
	for name := range r.channels {
		out = append(out, name)
	}
	return out
}

// deliver decodes an envelope and invokes the bound handler, if any.
func (r *registry) deliver(ctx context.Context, name string, raw []byte) {
	ch := r.get(name)
	if ch == nil {
		return
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logg.Error(r.logg.WithChannel(ctx, name), "realtime.decode_failed", err)
		return
	}
	handler := ch.handler(env.Event)
	if handler == nil {
		r.logg.Debug(r.logg.WithFields(ctx, map[string]any{"channel": name, "event": env.Event}), "realtime.unbound_event")
		return
	}
	handler(ctx, env.Data)
}
