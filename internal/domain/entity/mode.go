package entity

import (
	"fmt"
	"strings"

	"github.com/ruudy-sib/outbound/internal/domain"
)

// Mode is the operating mode selected once at startup.
type Mode string

const (
	// ModeLive sends every message through the broker connection.
	ModeLive Mode = "live"

	// ModeNoop accepts every message locally without any network activity.
	ModeNoop Mode = "noop"
)

// SelectMode decides the operating mode from the effective configuration.
//
// No-op mode requires both a non-production environment and no broker host.
// Production without a broker host is a configuration error rather than a
// silent downgrade.
func SelectMode(environment, brokerHost string) (Mode, error) {
	hostSet := strings.TrimSpace(brokerHost) != ""
	production := strings.EqualFold(strings.TrimSpace(environment), domain.EnvironmentProduction)

	switch {
	case hostSet:
		return ModeLive, nil
	case production:
		return "", fmt.Errorf("%w: broker host is required in %s", domain.ErrConfiguration, domain.EnvironmentProduction)
	default:
		return ModeNoop, nil
	}
}
