package enums

import "fmt"

// NotificationType is the severity carried by a live notification.
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeInfo,
	NotificationTypeSuccess,
	NotificationTypeWarning,
	NotificationTypeError,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// StyleKey returns the key the console uses to pick toast styling.
// The warning key is "warming"; the console stylesheet is keyed on that literal.
func (n NotificationType) StyleKey() string {
	switch n {
	case NotificationTypeWarning:
		return "warming"
	case NotificationTypeSuccess, NotificationTypeError:
		return string(n)
	default:
		return string(NotificationTypeInfo)
	}
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
