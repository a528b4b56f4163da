package runtime

import (
	"errors"
	"fmt"
)

type (
	// SignalKind distinguishes the non-local control transfers that ride the
	// error channel between the host executor and the runtime. Signals are not
	// user-visible faults; every call boundary that can receive one must
	// resolve it instead of reporting it.
	SignalKind int
	// Signal carries a control transfer: a return unwinding a chunk body, a
	// pending tail call to be completed by the receiver, a coroutine yield, or
	// a vm exit.
	Signal struct {
		kind   SignalKind
		values []any
		fn     any
		args   []any
		code   int
	}
)

const (
	// SignalReturn unwinds the current chunk body with its result values.
	SignalReturn SignalKind = iota
	// SignalTailCall asks the receiving call boundary to invoke fn(args...)
	// and fold the outcome into its own result.
	SignalTailCall
	// SignalYield suspends a coroutine; it is illegal across a protected
	// boundary.
	SignalYield
	// SignalExit shuts the vm down with an exit code.
	SignalExit
)

func (s *Signal) Error() string {
	return fmt.Sprintf("control transfer %v", s.kind)
}

// Kind reports which transfer this is.
func (s *Signal) Kind() SignalKind { return s.kind }

// Values returns the payload of a return or yield signal.
func (s *Signal) Values() []any { return s.values }

// Code returns the exit code of an exit signal.
func (s *Signal) Code() int { return s.code }

// ReturnSignal builds the transfer a chunk body uses to unwind with results.
func ReturnSignal(values ...any) *Signal {
	return &Signal{kind: SignalReturn, values: values}
}

// TailCallSignal defers invoking fn with args to the receiving call boundary
// so the current frame can be discarded first.
func TailCallSignal(fn any, args []any) *Signal {
	return &Signal{kind: SignalTailCall, fn: fn, args: args}
}

// YieldSignal suspends the current coroutine with the given values.
func YieldSignal(values ...any) *Signal {
	return &Signal{kind: SignalYield, values: values}
}

// ExitSignal requests vm shutdown.
func ExitSignal(code int) *Signal {
	return &Signal{kind: SignalExit, code: code}
}

func asSignal(err error) (*Signal, bool) {
	var sig *Signal
	if errors.As(err, &sig) {
		return sig, true
	}
	return nil, false
}
