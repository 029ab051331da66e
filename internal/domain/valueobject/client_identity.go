package valueobject

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// identityRandomBytes is how many random bytes follow the role tag.
const identityRandomBytes = 8

// ClientIdentity is an immutable identifier generated once per client. It
// namespaces message IDs and correlates log lines.
type ClientIdentity struct {
	value string
}

// NewClientIdentity combines the role tag with crypto-random bytes,
// e.g. "frontend-go-3fa9c20b7d41e865".
func NewClientIdentity(role string) (ClientIdentity, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return ClientIdentity{}, fmt.Errorf("client role must not be empty")
	}
	if strings.Contains(role, "/") {
		return ClientIdentity{}, fmt.Errorf("client role must not contain %q", "/")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return ClientIdentity{}, fmt.Errorf("generating client identity: %w", err)
	}

	return ClientIdentity{value: role + "-" + hex.EncodeToString(id[:identityRandomBytes])}, nil
}

// String returns the identity.
func (c ClientIdentity) String() string {
	return c.value
}

// IsZero reports whether the identity was never generated.
func (c ClientIdentity) IsZero() bool {
	return c.value == ""
}
