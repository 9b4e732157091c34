package notifications

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/eventix-edge/pkg/enums"
)

// Notification is one inbound live event rendered for the console.
type Notification struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	Type       enums.NotificationType `json:"type"`
	Style      string                 `json:"style"`
	Event      string                 `json:"event"`
	ReceivedAt time.Time              `json:"received_at"`
}

// EventMapper turns an event payload into the title, message and type of a
// notification. ID, Event and ReceivedAt are filled in by the Manager.
type EventMapper func(payload json.RawMessage) (Notification, error)

type newOrderPayload struct {
	BuyerName string `json:"buyerName"`
	EventName string `json:"eventName"`
}

type staffInvitedPayload struct {
	FullName string `json:"fullName"`
}

type eventCreatedPayload struct {
	Name string `json:"name"`
}

// DefaultMappers returns the dispatch table bound on every tenant channel.
func DefaultMappers() map[string]EventMapper {
	return map[string]EventMapper{
		enums.RealtimeEventNewOrder.String():     mapNewOrder,
		enums.RealtimeEventStaffInvited.String(): mapStaffInvited,
		enums.RealtimeEventEventCreated.String(): mapEventCreated,
	}
}

func mapNewOrder(payload json.RawMessage) (Notification, error) {
	var body newOrderPayload
	if err := decodePayload(payload, &body); err != nil {
		return Notification{}, err
	}
	return Notification{
		Title:   "New order",
		Message: fmt.Sprintf("%s purchased tickets for %s", body.BuyerName, body.EventName),
		Type:    enums.NotificationTypeSuccess,
	}, nil
}

func mapStaffInvited(payload json.RawMessage) (Notification, error) {
	var body staffInvitedPayload
	if err := decodePayload(payload, &body); err != nil {
		return Notification{}, err
	}
	return Notification{
		Title:   "Staff invited",
		Message: fmt.Sprintf("%s was invited to join your team", body.FullName),
		Type:    enums.NotificationTypeInfo,
	}, nil
}

func mapEventCreated(payload json.RawMessage) (Notification, error) {
	var body eventCreatedPayload
	if err := decodePayload(payload, &body); err != nil {
		return Notification{}, err
	}
	return Notification{
		Title:   "Event created",
		Message: fmt.Sprintf("%s is now live", body.Name),
		Type:    enums.NotificationTypeSuccess,
	}, nil
}

// decodePayload accepts an absent payload; fields then render empty.
func decodePayload(payload json.RawMessage, dst any) error {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// ChannelFor returns the tenant channel name, or "" when there is no tenant.
func ChannelFor(tenantID string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ""
	}
	return "tenant-" + tenantID
}

// CursorPosition places the notification in the newest-first history feed.
func (n Notification) CursorPosition() (time.Time, string) {
	return n.ReceivedAt, n.ID
}
