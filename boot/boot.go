// Package boot implements the supervisor that relocates the image,
// brings the device up, and keeps the application entry running across
// transient I/O resets.
package boot

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-picboot/linkpass"
	"github.com/mit-pdos/go-picboot/util"
)

// ErrIOReset is the one recoverable signal: the channel to the host
// was reset and bring-up is safe to repeat from the top. Everything
// else raised inside the guarded region is fatal.
var ErrIOReset = errors.New("boot: io channel reset")

// Session is the per-attempt communication state, the analog of the
// global session struct the firmware zeroes on every retry. It is
// constructed fresh at the top of each attempt and dropped at the end,
// so no state can leak across retries.
//
// PlaneMode is the one deliberate exception: the user's radio setting
// survives a reset and is copied from the previous attempt.
type Session struct {
	PlaneMode bool

	ApduState  uint64
	ApduLength uint64
	Ticks      uint64

	// Flags carries app-visible markers; tests use it to observe what
	// an attempt left behind.
	Flags map[string]bool
}

func mkSession(prev *Session) *Session {
	s := &Session{Flags: make(map[string]bool)}
	if prev != nil {
		s.PlaneMode = prev.PlaneMode
	}
	return s
}

// Step is one stage of device bring-up (USB/BLE init, host handshake).
// Steps run in order on every attempt; a retry never resumes partway.
type Step func(*Session) error

// AppEntry is the application entry point. In the success path it
// never returns; returning an error ends the attempt.
type AppEntry func(*Session) error

// Outcome is what one guarded attempt produced: either the attempt may
// be retried, or the supervisor halts with Reason.
type Outcome struct {
	Retry  bool
	Reason error
}

func classify(err error) Outcome {
	if errors.Is(err, ErrIOReset) {
		return Outcome{Retry: true, Reason: err}
	}
	return Outcome{Reason: err}
}

// Supervisor owns the boot loop. Init steps and the entry point are
// the external collaborators; the supervisor only sequences them.
type Supervisor struct {
	Init  []Step
	Entry AppEntry
}

// attempt runs one full bring-up and application invocation inside the
// fault boundary. A panic anywhere in the guarded region is an
// unrecognized signal: it halts, never retries.
func (s *Supervisor) attempt(sess *Session) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Reason: fmt.Errorf("boot: fault in guarded region: %v", r)}
		}
	}()
	for _, step := range s.Init {
		if err := step(sess); err != nil {
			return classify(err)
		}
	}
	return classify(s.Entry(sess))
}

// Run drives attempts until one halts and returns the halt reason (nil
// if the entry returned cleanly). maxRetries < 0 retries forever on
// the recoverable signal; tests pass a bound.
func (s *Supervisor) Run(maxRetries int) error {
	var prev *Session
	for retries := 0; ; retries++ {
		sess := mkSession(prev)
		out := s.attempt(sess)
		prev = sess
		if out.Retry && (maxRetries < 0 || retries < maxRetries) {
			util.DPrintf(1, "boot: io reset, restarting initialization\n")
			continue
		}
		return out.Reason
	}
}

// Boot relocates the image and then hands control to the supervisor
// loop. A relocation failure is fatal before any bring-up happens; the
// relocation pass is not retried on ErrIOReset because the reset
// signal can only originate inside the guarded region.
func Boot(p *linkpass.Pass, s *Supervisor, maxRetries int) error {
	if err := p.Run(); err != nil {
		return err
	}
	return s.Run(maxRetries)
}
