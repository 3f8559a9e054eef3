package enums

import "fmt"

// NotificationType labels the event a notification reports.
type NotificationType string

const (
	NotificationTypeOrderPlaced        NotificationType = "order_placed"
	NotificationTypeOrderStatusChanged NotificationType = "order_status_changed"
	NotificationTypeNewMessage         NotificationType = "new_message"
	NotificationTypeNewReview          NotificationType = "new_review"
	NotificationTypeStallApproved      NotificationType = "stall_approved"
	NotificationTypeStallRejected      NotificationType = "stall_rejected"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderPlaced,
	NotificationTypeOrderStatusChanged,
	NotificationTypeNewMessage,
	NotificationTypeNewReview,
	NotificationTypeStallApproved,
	NotificationTypeStallRejected,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
