package negotiation

import (
	"fmt"

	"github.com/backkem/iscsi/pkg/digest"
	"github.com/pion/logging"
)

// TargetInfo describes a target the portal exposes.
type TargetInfo struct {
	Name  string
	Alias string
}

// TargetResolver looks up targets by their iSCSI name.
type TargetResolver interface {
	Target(name string) (TargetInfo, bool)
}

// StaticTargets is a TargetResolver backed by a map keyed by target name.
type StaticTargets map[string]TargetInfo

// NewStaticTargets builds a StaticTargets from a list of targets.
func NewStaticTargets(targets ...TargetInfo) StaticTargets {
	s := make(StaticTargets, len(targets))
	for _, t := range targets {
		s[t.Name] = t
	}
	return s
}

// Target implements TargetResolver.
func (s StaticTargets) Target(name string) (TargetInfo, bool) {
	t, ok := s[name]
	return t, ok
}

// Config configures a SessionNegotiator and the connections negotiating
// on it.
type Config struct {
	// Targets resolves the TargetName declared by the initiator.
	// If nil, every normal session login fails.
	Targets TargetResolver

	// PortalGroupTag is returned as TargetPortalGroupTag.
	PortalGroupTag uint16

	// MaxConnections is the number of connections per session the target
	// offers. Zero means DefaultMaxConnections.
	MaxConnections int

	// AllowSloppyNegotiation accepts a single number where RFC 3720
	// requires a range (IFMarkInt, OFMarkInt).
	AllowSloppyNegotiation bool

	// HeaderDigests and DataDigests list the supported digests in
	// preference order. Empty means None only.
	HeaderDigests []string
	DataDigests   []string

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) validate() error {
	if c.MaxConnections < 0 || c.MaxConnections > maxShort {
		return fmt.Errorf("%w: MaxConnections %d", ErrInvalidConfig, c.MaxConnections)
	}
	for _, names := range [][]string{c.HeaderDigests, c.DataDigests} {
		for _, name := range names {
			if name == "" {
				return fmt.Errorf("%w: empty name", ErrUnsupportedDigest)
			}
			if _, err := digest.ByName(name); err != nil {
				return fmt.Errorf("%w: %q", ErrUnsupportedDigest, name)
			}
		}
	}
	return nil
}

func supportedDigests(names []string) []string {
	if len(names) == 0 {
		return []string{digest.NameNone}
	}
	return names
}
