package valueobject

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageID is an immutable value object of the form "<identity>/<sequence>".
type MessageID struct {
	identity string
	sequence uint64
}

// NewMessageID builds the message ID for a sequence number.
func NewMessageID(identity ClientIdentity, sequence uint64) MessageID {
	return MessageID{identity: identity.String(), sequence: sequence}
}

// ParseMessageID validates and splits a message ID string.
func ParseMessageID(value string) (MessageID, error) {
	trimmed := strings.TrimSpace(value)
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 || idx == len(trimmed)-1 {
		return MessageID{}, fmt.Errorf("message ID %q must have the form <identity>/<sequence>", value)
	}

	seq, err := strconv.ParseUint(trimmed[idx+1:], 10, 64)
	if err != nil {
		return MessageID{}, fmt.Errorf("message ID %q has an invalid sequence: %w", value, err)
	}

	return MessageID{identity: trimmed[:idx], sequence: seq}, nil
}

// Identity returns the client identity part.
func (m MessageID) Identity() string {
	return m.identity
}

// Sequence returns the numeric suffix.
func (m MessageID) Sequence() uint64 {
	return m.sequence
}

// String returns the string representation of the MessageID.
func (m MessageID) String() string {
	return m.identity + "/" + strconv.FormatUint(m.sequence, 10)
}

// Equals checks equality with another MessageID.
func (m MessageID) Equals(other MessageID) bool {
	return m.identity == other.identity && m.sequence == other.sequence
}
