package mvsdk

import (
	"log/slog"
	"sync"
)

// Subsystem owns the process-wide driver Initialize/Finalize pair.
//
// The SDK keeps global state, so one Subsystem should exist per driver and
// be shared by every session using it. Acquire initializes the driver on
// the first reference; Release finalizes it when the last reference goes.
type Subsystem struct {
	driver Driver
	logger *slog.Logger

	mu   sync.Mutex
	refs int
}

// NewSubsystem wraps a driver. The driver is not initialized until Acquire.
func NewSubsystem(driver Driver, logger *slog.Logger) *Subsystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subsystem{
		driver: driver,
		logger: logger.With("driver", driver.Name()),
	}
}

// Driver returns the wrapped driver.
func (s *Subsystem) Driver() Driver {
	return s.driver
}

// Acquire takes a reference, initializing the driver if this is the first.
// On failure no reference is taken.
func (s *Subsystem) Acquire() Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		if code := s.driver.Initialize(); code.Failed() {
			s.logger.Error("driver initialize failed", "code", code)
			return code
		}
		s.logger.Debug("driver initialized")
	}
	s.refs++
	return OK
}

// Release drops a reference, finalizing the driver when it was the last.
func (s *Subsystem) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return ErrSubsystemReleased
	}
	s.refs--
	if s.refs == 0 {
		if code := s.driver.Finalize(); code.Failed() {
			s.logger.Warn("driver finalize failed", "code", code)
		} else {
			s.logger.Debug("driver finalized")
		}
	}
	return nil
}

// Refs returns the number of outstanding references.
func (s *Subsystem) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}
