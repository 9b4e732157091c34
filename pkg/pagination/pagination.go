package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size used when a request omits limit.
	DefaultLimit = 20
	// MaxLimit caps a single history page.
	MaxLimit = 50
)

// Params holds cursor pagination inputs parsed from a query string.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last item of the previous page. History is ordered
// newest first, so the next page starts strictly after this position.
type Cursor struct {
	ReceivedAt time.Time
	ID         uuid.UUID
}

// Item is anything that can be positioned in a newest-first feed.
type Item interface {
	CursorPosition() (time.Time, string)
}

// Page is one window over a feed.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit enforces the default and maximum page sizes.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor builds an opaque cursor string.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.ReceivedAt.UTC().Format(time.RFC3339Nano), cursor.ID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a cursor string. A blank value means the first page.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{
		ReceivedAt: t,
		ID:         id,
	}, nil
}

// Slice returns the page of a newest-first feed that follows params.Cursor.
// A cursor whose item is no longer present (history cleared or trimmed)
// resumes at the first item older than the cursor timestamp.
func Slice[T Item](items []T, params Params) (Page[T], error) {
	limit := NormalizeLimit(params.Limit)
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return Page[T]{}, err
	}

	start := 0
	if cursor != nil {
		start = len(items)
		for i, item := range items {
			at, id := item.CursorPosition()
			if id == cursor.ID.String() {
				start = i + 1
				break
			}
			if at.Before(cursor.ReceivedAt) {
				start = i
				break
			}
		}
	}

	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	page := Page[T]{Items: append([]T(nil), items[start:end]...)}
	if page.Items == nil {
		page.Items = []T{}
	}
	if end < len(items) && end > start {
		at, id := items[end-1].CursorPosition()
		parsed, err := uuid.Parse(id)
		if err != nil {
			return Page[T]{}, fmt.Errorf("item id is not a uuid: %w", err)
		}
		page.NextCursor = EncodeCursor(Cursor{ReceivedAt: at, ID: parsed})
	}
	return page, nil
}
