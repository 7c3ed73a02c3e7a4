// Package autolock locks the key ring after a period of user inactivity.
// The supervisor is one-shot: it disarms itself after firing and must be
// re-armed by whoever unlocks the ring again.
package autolock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/keyring"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/logger"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/metrics"
)

// stateStorageKey persists the inactivity clock across restarts.
const stateStorageKey = "autolock/state"

// Locker is the lockable key ring. Kept narrow so the supervisor never
// learns about approvals or addresses.
type Locker interface {
	Status() keyring.Status
	Lock() error
}

type persistedState struct {
	LastActivityUnixMS int64 `json:"last_activity_unix_ms"`
}

// Supervisor watches the inactivity clock and locks the ring when it
// expires.
type Supervisor struct {
	locker  Locker
	kv      keyring.KV
	timeout time.Duration
	poll    time.Duration
	now     func() time.Time

	mu           sync.Mutex
	armed        bool
	lastActivity time.Time

	stop chan struct{}
	done chan struct{}
}

// New creates a disarmed supervisor. timeout is the inactivity window,
// poll how often it is checked.
func New(locker Locker, kv keyring.KV, timeout, poll time.Duration) *Supervisor {
	return &Supervisor{
		locker:  locker,
		kv:      kv,
		timeout: timeout,
		poll:    poll,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Restore loads the persisted inactivity clock. Called once at startup,
// before Start.
func (s *Supervisor) Restore(ctx context.Context) error {
	blob, ok, err := s.kv.Get(ctx, stateStorageKey)
	if err != nil {
		return fmt.Errorf("failed to load auto-lock state: %w", err)
	}
	if !ok {
		return nil
	}

	var st persistedState
	if err := json.Unmarshal(blob, &st); err != nil {
		return fmt.Errorf("failed to decode auto-lock state: %w", err)
	}

	s.mu.Lock()
	s.lastActivity = time.UnixMilli(st.LastActivityUnixMS)
	s.mu.Unlock()
	return nil
}

// Start runs the poll loop until Stop is called.
func (s *Supervisor) Start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.step(context.Background())
			}
		}
	}()
}

// Stop terminates the poll loop and waits for it to exit.
func (s *Supervisor) Stop() {
	close(s.stop)
	<-s.done
}

// Arm starts a fresh inactivity window. Called after every unlock.
func (s *Supervisor) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
	s.lastActivity = s.now()
}

// RecordActivity resets the inactivity clock and persists it.
func (s *Supervisor) RecordActivity(ctx context.Context) error {
	s.mu.Lock()
	now := s.now()
	s.lastActivity = now
	s.mu.Unlock()

	blob, err := json.Marshal(persistedState{LastActivityUnixMS: now.UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to encode auto-lock state: %w", err)
	}
	if err := s.kv.Set(ctx, stateStorageKey, blob); err != nil {
		return fmt.Errorf("failed to persist auto-lock state: %w", err)
	}
	return nil
}

// step fires at most one lock per arming. A ring locked by other means
// disarms the supervisor until the next unlock.
func (s *Supervisor) step(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed {
		return
	}
	if s.locker.Status() != keyring.StatusUnlocked {
		s.armed = false
		return
	}
	if s.now().Sub(s.lastActivity) < s.timeout {
		return
	}

	s.armed = false
	if err := s.locker.Lock(); err != nil {
		logger.Error(ctx, "auto-lock failed", "error", err)
		return
	}
	metrics.AutoLocks.Inc()
	logger.Info(ctx, "key ring auto-locked after inactivity", "timeout", s.timeout.String())
}
