package domain

// AlertSource identifies which ingestion path raised an alert.
type AlertSource string

const (
	AlertSourcePoll AlertSource = "poll"
	AlertSourcePush AlertSource = "push"
)

// String returns the string representation of AlertSource.
func (s AlertSource) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s AlertSource) IsValid() bool {
	return s == AlertSourcePoll || s == AlertSourcePush
}
