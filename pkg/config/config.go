// Package config loads the YAML configuration of an iSCSI target portal.
//
// Example:
//
//	address: 0.0.0.0
//	port: 3260
//	target_address: storage.example.com
//	portal_group_tag: 1
//	header_digests: [CRC32C, None]
//	data_digests: [None]
//	max_sessions: 16
//	max_connections: 1
//	targets:
//	  - name: iqn.2024-01.com.example:disk1
//	    alias: disk1
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/backkem/iscsi/pkg/digest"
	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/backkem/iscsi/pkg/transport"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// Target is one exposed target.
type Target struct {
	Name  string `yaml:"name"`
	Alias string `yaml:"alias,omitempty"`
}

// Config is the portal configuration.
type Config struct {
	Address                string   `yaml:"address"`
	Port                   int      `yaml:"port"`
	TargetAddress          string   `yaml:"target_address"`
	PortalGroupTag         uint16   `yaml:"portal_group_tag"`
	AllowSloppyNegotiation bool     `yaml:"allow_sloppy_negotiation"`
	HeaderDigests          []string `yaml:"header_digests"`
	DataDigests            []string `yaml:"data_digests"`
	MaxSessions            int      `yaml:"max_sessions"`
	MaxConnections         int      `yaml:"max_connections"`
	Targets                []Target `yaml:"targets"`
}

// Default returns a configuration listening on all addresses at the
// default port, with no digests and no targets.
func Default() *Config {
	return &Config{
		Port:           transport.DefaultPort,
		PortalGroupTag: 1,
		HeaderDigests:  []string{digest.NameNone},
		DataDigests:    []string{digest.NameNone},
		MaxSessions:    session.DefaultMaxSessions,
		MaxConnections: negotiation.DefaultMaxConnections,
	}
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse parses YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if strings.ContainsAny(c.TargetAddress, ", \x00") {
		return fmt.Errorf("%w: %q", ErrInvalidTargetAddress, c.TargetAddress)
	}
	if c.MaxSessions < 0 || c.MaxSessions > int(session.MaxTSIH) {
		return fmt.Errorf("%w: max_sessions %d", ErrInvalidLimit, c.MaxSessions)
	}
	if c.MaxConnections < 0 || c.MaxConnections > 65535 {
		return fmt.Errorf("%w: max_connections %d", ErrInvalidLimit, c.MaxConnections)
	}
	for _, names := range [][]string{c.HeaderDigests, c.DataDigests} {
		for _, name := range names {
			if _, err := digest.ByName(name); err != nil || name == "" {
				return fmt.Errorf("%w: %q", ErrInvalidDigest, name)
			}
		}
	}

	if len(c.Targets) == 0 {
		return ErrNoTargets
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if !validTargetName(t.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidTargetName, t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateTarget, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// validTargetName accepts the iqn., eui. and naa. name formats of
// RFC 3720 Section 3.2.6.3.
func validTargetName(name string) bool {
	if strings.ContainsAny(name, " \x00") {
		return false
	}
	for _, prefix := range []string{"iqn.", "eui.", "naa."} {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return true
		}
	}
	return false
}

// ListenAddr returns the host:port to listen on.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Target returns the configured target called name.
func (c *Config) Target(name string) (Target, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// PortalAddress returns the TargetAddress value announced to initiators,
// in the form address:port,tpgt. Without a configured target_address the
// local address of the initiator's connection is announced; an address
// without a port gets the portal port.
func (c *Config) PortalAddress(local net.Addr) string {
	addr := c.TargetAddress
	if addr == "" && local != nil {
		addr = local.String()
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(c.Port))
	}
	return fmt.Sprintf("%s,%d", addr, c.PortalGroupTag)
}

// NegotiationConfig returns the negotiation settings of the portal.
func (c *Config) NegotiationConfig(loggerFactory logging.LoggerFactory) negotiation.Config {
	targets := make([]negotiation.TargetInfo, 0, len(c.Targets))
	for _, t := range c.Targets {
		targets = append(targets, negotiation.TargetInfo{Name: t.Name, Alias: t.Alias})
	}
	return negotiation.Config{
		Targets:                negotiation.NewStaticTargets(targets...),
		PortalGroupTag:         c.PortalGroupTag,
		MaxConnections:         c.MaxConnections,
		AllowSloppyNegotiation: c.AllowSloppyNegotiation,
		HeaderDigests:          c.HeaderDigests,
		DataDigests:            c.DataDigests,
		LoggerFactory:          loggerFactory,
	}
}

// ManagerConfig returns the session manager settings of the portal.
func (c *Config) ManagerConfig(loggerFactory logging.LoggerFactory) session.ManagerConfig {
	return session.ManagerConfig{
		MaxSessions:   c.MaxSessions,
		Negotiation:   c.NegotiationConfig(loggerFactory),
		LoggerFactory: loggerFactory,
	}
}
