// Package lifecycle implements the connection state machine described in
// spec §4.9: the Requesting→Opening→Configuring→Claiming→Initialized→Ready
// sequence, retry policy, auto-reconnect, and disconnect bookkeeping.
package lifecycle

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
)

// State enumerates the top-level connection state (spec §3's
// ConnectionState, mirrored here rather than imported from jensen to avoid
// an import cycle: jensen imports this package to build Client).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// SubStatus enumerates the multi-step connect sequence (spec §4.9).
type SubStatus int

const (
	SubIdle SubStatus = iota
	SubRequesting
	SubOpening
	SubConfiguring
	SubClaiming
	SubInitialized
	SubReady
	SubDisconnecting
	SubError
)

func (s SubStatus) String() string {
	switch s {
	case SubIdle:
		return "idle"
	case SubRequesting:
		return "requesting"
	case SubOpening:
		return "opening"
	case SubConfiguring:
		return "configuring"
	case SubClaiming:
		return "claiming"
	case SubInitialized:
		return "initialized"
	case SubReady:
		return "ready"
	case SubDisconnecting:
		return "disconnecting"
	case SubError:
		return "error"
	default:
		return "unknown"
	}
}

// Transition is published on every state change (spec §4.9: "each
// transition publishes a status event").
type Transition struct {
	State     State
	SubStatus SubStatus
	Progress  int
	Message   string
}

// Policy configures the retry/threshold behavior (spec §4.9's named
// defaults, made explicit per the redesign flag in spec §9 rather than
// hidden module-level constants).
type Policy struct {
	MaxRetryAttempts int
	RetryDelay       time.Duration
	MaxErrorThreshold uint64
}

// DefaultPolicy returns the documented defaults (spec §4.9).
func DefaultPolicy() Policy {
	return Policy{MaxRetryAttempts: 3, RetryDelay: 1 * time.Second, MaxErrorThreshold: 5}
}

// Steps is the sequence of one connect attempt's init stages (spec §4.9).
// Each func performs its stage and returns an error to abort the attempt.
type Steps struct {
	Open            func(ctx context.Context) error
	GetInfo         func(ctx context.Context) error
	GetStorage      func(ctx context.Context) error
	GetSettings     func(ctx context.Context) error
	SyncTime        func(ctx context.Context) error
	Probe           func() bool // used by auto-reconnect to check device presence
}

// Manager drives the connection state machine. It holds no transport
// reference itself; Steps supplies the operations to run at each stage, so
// Manager stays testable without a real USB device.
type Manager struct {
	policy Policy
	logger *log.Logger
	onTransition func(Transition)

	mu                    sync.Mutex
	state                 State
	subStatus             SubStatus
	connectionLostErrors  uint64
	userInitiatedDisconnect bool
	reconnecting          bool
}

// New constructs a Manager. onTransition is called (synchronously, from
// whichever goroutine drives Connect/Disconnect) for every state change;
// it is typically wired to the jensen package's status sink.
func New(policy Policy, logger *log.Logger, onTransition func(Transition)) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if onTransition == nil {
		onTransition = func(Transition) {}
	}
	return &Manager{policy: policy, logger: logger, onTransition: onTransition, state: StateDisconnected, subStatus: SubIdle}
}

// State returns the current top-level state and sub-status.
func (m *Manager) State() (State, SubStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.subStatus
}

func (m *Manager) transition(state State, sub SubStatus, progress int, message string) {
	m.mu.Lock()
	m.state = state
	m.subStatus = sub
	m.mu.Unlock()
	m.logger.Printf("lifecycle: %s/%s (%d%%) %s", state, sub, progress, message)
	m.onTransition(Transition{State: state, SubStatus: sub, Progress: progress, Message: message})
}

// CountConnectionLost records one connection_lost error toward the retry
// suppression threshold (spec §4.9).
func (m *Manager) CountConnectionLost() {
	m.mu.Lock()
	m.connectionLostErrors++
	m.mu.Unlock()
}

// ResetErrorCounts clears the cumulative connection_lost count. Replaces
// the source's randomized reset with an explicit call (spec §9).
func (m *Manager) ResetErrorCounts() {
	m.mu.Lock()
	m.connectionLostErrors = 0
	m.mu.Unlock()
}

func (m *Manager) retrySuppressed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectionLostErrors > m.policy.MaxErrorThreshold
}

// Connect runs one full connect sequence (Requesting through Ready),
// retrying the Open stage up to policy.MaxRetryAttempts times with
// policy.RetryDelay between attempts, unless retry is suppressed by the
// cumulative connection_lost count (spec §4.9's retry policy).
func (m *Manager) Connect(ctx context.Context, steps Steps) error {
	m.transition(StateConnecting, SubRequesting, 0, "connect requested")

	var lastErr error
	attempts := m.policy.MaxRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	if m.retrySuppressed() {
		attempts = 1
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(m.policy.RetryDelay), uint64(attempts-1))
	op := func() error {
		m.transition(StateConnecting, SubOpening, 10, "opening device")
		if err := steps.Open(ctx); err != nil {
			lastErr = err
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		m.transition(StateError, SubError, 0, lastErr.Error())
		return lastErr
	}

	m.transition(StateConnecting, SubConfiguring, 30, "configuring")
	m.transition(StateConnecting, SubClaiming, 40, "claiming interface")
	if steps.GetInfo != nil {
		m.transition(StateConnecting, SubInitialized, 50, "reading device info")
		if err := steps.GetInfo(ctx); err != nil {
			m.transition(StateError, SubError, 0, err.Error())
			return err
		}
	}
	if steps.GetStorage != nil {
		if err := steps.GetStorage(ctx); err != nil {
			m.transition(StateError, SubError, 0, err.Error())
			return err
		}
	}
	if steps.GetSettings != nil {
		if err := steps.GetSettings(ctx); err != nil {
			m.transition(StateError, SubError, 0, err.Error())
			return err
		}
	}
	if steps.SyncTime != nil {
		m.transition(StateConnecting, SubInitialized, 90, "syncing time")
		if err := steps.SyncTime(ctx); err != nil {
			m.transition(StateError, SubError, 0, err.Error())
			return err
		}
	}

	m.mu.Lock()
	m.userInitiatedDisconnect = false
	m.mu.Unlock()
	m.transition(StateConnected, SubReady, 100, "ready")
	return nil
}

// Disconnect releases the connection (spec §4.9's Disconnect: releases
// interface, clears short-term error state, sets user_initiated_disconnect
// so auto-reconnect does not immediately re-open). A user-initiated
// disconnect clears the cumulative connection_lost count along with
// everything else; a connection-loss-triggered one (userInitiated=false)
// leaves it alone, so repeated drops still accumulate toward
// policy.MaxErrorThreshold (spec §7, §9) instead of resetting on every
// individual loss.
func (m *Manager) Disconnect(userInitiated bool, closeFn func() error) error {
	m.transition(m.currentState(), SubDisconnecting, 0, "disconnecting")
	var err error
	if closeFn != nil {
		err = closeFn()
	}
	m.mu.Lock()
	m.userInitiatedDisconnect = userInitiated
	if userInitiated {
		m.connectionLostErrors = 0
	}
	m.mu.Unlock()
	m.transition(StateDisconnected, SubIdle, 0, "disconnected")
	return err
}

func (m *Manager) currentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ShouldAutoReconnect reports whether an auto-reconnect attempt should be
// made right now (spec §4.9: suppressed while one is already in progress,
// while connected, and after a user-initiated disconnect).
func (m *Manager) ShouldAutoReconnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconnecting || m.state == StateConnected || m.state == StateConnecting {
		return false
	}
	return !m.userInitiatedDisconnect
}

// AutoReconnect attempts one auto-reconnect using steps.Probe to check for
// an already-authorized device before attempting Connect (spec §4.9:
// "enumerate already-authorized USB devices, filter by the vendor/product
// filter set, and attempt to connect to the first match").
func (m *Manager) AutoReconnect(ctx context.Context, steps Steps) error {
	if !m.ShouldAutoReconnect() {
		return nil
	}
	if steps.Probe != nil && !steps.Probe() {
		return nil
	}
	m.mu.Lock()
	m.reconnecting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()
	return m.Connect(ctx, steps)
}
