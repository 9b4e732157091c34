// Package realtime is the pub/sub connection used for tenant-scoped live events.
//
// A Connection owns one transport session. Channels are subscribed by logical
// name (for example "tenant-42"); the physical topic is namespaced with the
// application key so several apps can share one cluster.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/eventix-edge/pkg/logger"
)

var (
	// ErrMissingCredentials is returned by Connect when key or cluster is blank.
	ErrMissingCredentials = errors.New("realtime credentials not configured")
	// ErrClosed is returned by operations on a disconnected Connection.
	ErrClosed = errors.New("realtime connection closed")
)

// Credentials mirror the key/cluster pair supplied through configuration.
type Credentials struct {
	Key     string
	Cluster string
}

func (c Credentials) missing() bool {
	return strings.TrimSpace(c.Key) == "" || strings.TrimSpace(c.Cluster) == ""
}

// Handler receives the raw event payload. Handlers run on the transport's
// delivery goroutine and must not block.
type Handler func(ctx context.Context, payload json.RawMessage)

// Channel is a live subscription to one logical channel.
type Channel interface {
	Name() string
	Bind(event string, handler Handler)
	UnbindAll()
}

// Connection is the process-wide handle to the messaging service.
type Connection interface {
	Subscribe(ctx context.Context, channel string) (Channel, error)
	Unsubscribe(ctx context.Context, channel string) error
	Publish(ctx context.Context, channel, event string, payload any) error
	Disconnect() error
}

// Envelope is the wire format carried on every topic.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEnvelope marshals an event and its payload into the wire format.
func EncodeEnvelope(event string, payload any) ([]byte, error) {
	if strings.TrimSpace(event) == "" {
		return nil, errors.New("event name is required")
	}
	var data json.RawMessage
	switch v := payload.(type) {
	case nil:
	case json.RawMessage:
		data = v
	case []byte:
		data = json.RawMessage(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		data = raw
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Connect dials the transport selected by the cluster URL scheme.
func Connect(ctx context.Context, creds Credentials, logg *logger.Logger) (Connection, error) {
	if creds.missing() {
		return nil, ErrMissingCredentials
	}
	if logg == nil {
		logg = logger.Nop()
	}
	cluster := strings.TrimSpace(creds.Cluster)
	u, err := url.Parse(cluster)
	if err != nil {
		return nil, fmt.Errorf("parsing realtime cluster: %w", err)
	}
	key := strings.TrimSpace(creds.Key)
	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		conn, err := dialRedis(ctx, key, cluster, logg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "nats", "tls":
		conn, err := dialNATS(key, cluster, logg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "memory":
		return NewMemory(logg), nil
	default:
		return nil, fmt.Errorf("unsupported realtime cluster scheme %q", u.Scheme)
	}
}
