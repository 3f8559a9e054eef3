package enums

import "fmt"

// StallStatus tracks the moderation state of a stall.
type StallStatus string

const (
	StallStatusPending  StallStatus = "pending"
	StallStatusApproved StallStatus = "approved"
	StallStatusRejected StallStatus = "rejected"
)

var validStallStatuses = []StallStatus{
	StallStatusPending,
	StallStatusApproved,
	StallStatusRejected,
}

// String implements fmt.Stringer.
func (s StallStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StallStatus.
func (s StallStatus) IsValid() bool {
	for _, candidate := range validStallStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStallStatus converts raw input into a StallStatus.
func ParseStallStatus(value string) (StallStatus, error) {
	for _, candidate := range validStallStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stall status %q", value)
}
