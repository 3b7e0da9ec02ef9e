package negotiation

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/logging"
)

// Default values of connection parameters.
const (
	DefaultMaxRecvDataSegmentLength = 8192
	DefaultMarkInt                  = 2048
)

// ConnectionNegotiator negotiates the parameters of one connection and,
// through its SessionNegotiator, the session wide parameters.
//
// A ConnectionNegotiator is used by the goroutine serving the connection.
// Settings may be called from any goroutine.
type ConnectionNegotiator struct {
	session *SessionNegotiator
	config  Config
	log     logging.LeveledLogger

	entries []Entry
	backup  []Entry

	mu          sync.Mutex
	negotiating bool
	values      map[textkey.Key]any
	settings    *Settings
}

// NewConnectionNegotiator creates the connection entries of a new
// connection of session.
func NewConnectionNegotiator(session *SessionNegotiator) (*ConnectionNegotiator, error) {
	if session == nil {
		return nil, ErrNoSession
	}
	c := &ConnectionNegotiator{
		session: session,
		config:  session.config,
		log:     session.log,
	}
	c.entries = c.newEntries()
	c.values = snapshotValues(c.entries)
	c.updateSettings()
	return c, nil
}

func (c *ConnectionNegotiator) newEntries() []Entry {
	none := textkey.None
	digestEntry := func(key textkey.Key, supported []string) Entry {
		return NewStringEntry(StringEntryConfig{
			Key:       key,
			Type:      Negotiated,
			Use:       UseLoginOperational,
			Status:    StatusDefault,
			Supported: supportedDigests(supported),
			Default:   &none,
			Logger:    c.log,
		})
	}
	marker := func(key textkey.Key) Entry {
		return NewBooleanEntry(BooleanEntryConfig{
			Key:    key,
			Use:    UseLoginOperational,
			Status: StatusDefault,
			Result: ResultAnd,
			Logger: c.log,
		})
	}
	markInt := func(key textkey.Key) Entry {
		return NewNumericalRangeEntry(NumericalRangeEntryConfig{
			Key:              key,
			Use:              UseLoginOperational,
			Status:           StatusIrrelevant,
			NegotiationValue: DefaultMarkInt,
			Min:              1,
			Max:              maxShort,
			Default:          DefaultMarkInt,
			AllowSloppy:      c.config.AllowSloppyNegotiation,
			Logger:           c.log,
		})
	}

	return []Entry{
		digestEntry(textkey.KeyDataDigest, c.config.DataDigests),
		digestEntry(textkey.KeyHeaderDigest, c.config.HeaderDigests),
		marker(textkey.KeyIFMarker),
		markInt(textkey.KeyIFMarkInt),
		NewNumericalEntry(NumericalEntryConfig{
			Key:               textkey.KeyMaxRecvDataSegmentLength,
			Type:              Declared,
			Use:               UseLoginOperationalAndFullFeature,
			Status:            StatusDefault,
			NegotiationValue:  DefaultMaxRecvDataSegmentLength,
			Min:               minBurstLength,
			Max:               maxBurstLength,
			Result:            ResultMin,
			Default:           DefaultMaxRecvDataSegmentLength,
			ZeroMeansDontCare: true,
			Logger:            c.log,
		}),
		marker(textkey.KeyOFMarker),
		markInt(textkey.KeyOFMarkInt),
		NewStringEntry(StringEntryConfig{
			Key:    textkey.KeyTargetName,
			Type:   Declared,
			Use:    UseInitial,
			Status: StatusNotNegotiated,
			Logger: c.log,
		}),
	}
}

// Session returns the session negotiator of the connection.
func (c *ConnectionNegotiator) Session() *SessionNegotiator {
	return c.session
}

// Entry returns the connection or session entry matching key, or nil.
func (c *ConnectionNegotiator) Entry(key string) Entry {
	if e := findEntry(c.entries, key); e != nil {
		return e
	}
	return c.session.Entry(key)
}

// BeginNegotiation starts a negotiation round. It blocks while another
// connection of the same session negotiates, until ctx is done.
func (c *ConnectionNegotiator) BeginNegotiation(ctx context.Context) error {
	c.mu.Lock()
	if c.negotiating {
		c.mu.Unlock()
		return ErrAlreadyNegotiating
	}
	c.mu.Unlock()

	if err := c.session.acquire(ctx); err != nil {
		return err
	}

	c.backup = copyEntries(c.entries)
	c.session.backUp()

	c.mu.Lock()
	c.negotiating = true
	c.mu.Unlock()
	return nil
}

// Negotiate processes the key=value pairs of one request and appends the
// reply pairs to response. Unknown keys are answered with NotUnderstood.
// It returns false if any pair was malformed or rejected, or if the
// initial PDU lacks a mandatory declaration.
func (c *ConnectionNegotiator) Negotiate(r Round, requestPairs []string, response *[]string) bool {
	if !c.isNegotiating() {
		if c.log != nil {
			c.log.Warnf("%v", ErrNotNegotiating)
		}
		return false
	}

	keys := make([]string, 0, len(requestPairs))
	values := make([]string, 0, len(requestPairs))
	for _, pair := range requestPairs {
		key, value, err := textkey.SplitKeyValuePair(pair)
		if err != nil {
			if c.log != nil {
				c.log.Debugf("%v", err)
			}
			return false
		}
		keys = append(keys, key)
		values = append(values, value)
	}

	login := r.InitialPDU && r.Stage != pdu.LoginStageFullFeature
	if login && !r.Leading {
		if err := c.CheckSessionIdentity(requestPairs); err != nil {
			if c.log != nil {
				c.log.Debugf("%v", err)
			}
			return false
		}
	}

	ok := true
	for i, key := range keys {
		e := c.Entry(key)
		if e == nil {
			*response = append(*response, textkey.ToKeyValuePair(key, textkey.NotUnderstood))
			continue
		}
		if !e.negotiate(r, key, values[i], response) {
			ok = false
		}
	}

	if login {
		ok = c.checkInitial(ok, response)
	}
	return ok
}

// checkInitial enforces the declarations required in the first login PDU
// and appends the target declarations of a normal session.
func (c *ConnectionNegotiator) checkInitial(ok bool, response *[]string) bool {
	if e := c.session.Entry(textkey.KeyInitiatorName.String()); e == nil || e.Status() != StatusAccepted {
		if c.log != nil {
			c.log.Debugf("initial PDU without InitiatorName")
		}
		ok = false
	}

	sessionType, err := c.session.Entry(textkey.KeySessionType.String()).(*StringEntry).Value()
	if err != nil || sessionType != textkey.Normal {
		return ok
	}

	name, err := findEntry(c.entries, textkey.KeyTargetName.String()).(*StringEntry).Value()
	if err != nil {
		if c.log != nil {
			c.log.Debugf("normal session without TargetName")
		}
		return false
	}
	var target TargetInfo
	found := false
	if c.config.Targets != nil {
		target, found = c.config.Targets.Target(name)
	}
	if !found {
		if c.log != nil {
			c.log.Debugf("%v: %q", ErrUnknownTarget, name)
		}
		return false
	}
	if !ok {
		return false
	}

	if target.Alias != "" {
		*response = append(*response, textkey.ToKeyValuePair(textkey.KeyTargetAlias.String(), target.Alias))
	}
	*response = append(*response, textkey.ToKeyValuePair(textkey.KeyTargetPortalGroupTag.String(),
		strconv.Itoa(int(c.config.PortalGroupTag))))
	return true
}

// sessionIdentityKeys are the session keys a joining connection may only
// repeat.
var sessionIdentityKeys = []textkey.Key{textkey.KeyInitiatorName, textkey.KeySessionType}

// CheckSessionIdentity checks that InitiatorName and SessionType pairs
// carry the values the session already holds. It must be called inside a
// round, before the pairs are negotiated.
func (c *ConnectionNegotiator) CheckSessionIdentity(requestPairs []string) error {
	for _, pair := range requestPairs {
		key, value, err := textkey.SplitKeyValuePair(pair)
		if err != nil {
			continue
		}
		for _, k := range sessionIdentityKeys {
			e, ok := c.session.Entry(k.String()).(*StringEntry)
			if !ok || !e.Matches(key) {
				continue
			}
			current, err := e.Value()
			if err != nil {
				continue
			}
			if value != current {
				return fmt.Errorf("%w: %s=%q, session has %q", ErrSessionMismatch, key, value, current)
			}
		}
	}
	return nil
}

// CheckConstraints validates cross-key rules after all pairs of a round
// have been processed.
func (c *ConnectionNegotiator) CheckConstraints() error {
	return c.session.CheckConstraints()
}

// FinishNegotiation ends the round. A commit keeps the negotiated values
// and allows the keys to be negotiated again in a later round; otherwise
// all entries are restored to their state at BeginNegotiation. Calling it
// without a preceding BeginNegotiation does nothing.
func (c *ConnectionNegotiator) FinishNegotiation(commit bool) {
	if !c.isNegotiating() {
		return
	}

	if commit {
		for _, e := range c.entries {
			e.state().resetRound()
		}
	} else if c.backup != nil {
		c.entries = c.backup
	}
	c.backup = nil
	c.session.commitOrRollBack(commit)

	values := snapshotValues(c.entries)
	c.session.rebuild()

	c.mu.Lock()
	c.values = values
	c.updateSettings()
	c.negotiating = false
	c.mu.Unlock()

	c.session.release()
}

// WithNegotiation runs fn inside a negotiation round. The round commits
// only if fn returns true and the constraints hold; it is finished on
// every path, including a panic in fn.
func (c *ConnectionNegotiator) WithNegotiation(ctx context.Context, fn func() bool) (bool, error) {
	if err := c.BeginNegotiation(ctx); err != nil {
		return false, err
	}
	commit := false
	defer func() { c.FinishNegotiation(commit) }()

	if !fn() {
		return false, nil
	}
	if err := c.CheckConstraints(); err != nil {
		return false, err
	}
	commit = true
	return true, nil
}

// Settings returns the current settings snapshot. It is rebuilt when
// another connection has since finished a round on the same session.
func (c *ConnectionNegotiator) Settings() *Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Generation() > c.settings.ID() {
		c.updateSettings()
	}
	return c.settings
}

func (c *ConnectionNegotiator) isNegotiating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiating
}

// updateSettings must be called with mu held or before c is shared.
func (c *ConnectionNegotiator) updateSettings() {
	id, session := c.session.settingsValues()
	c.settings = newSettings(id, c.values, session)
}
