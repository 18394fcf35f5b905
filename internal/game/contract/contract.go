// Package contract reports programming-contract violations: caller misuse such as a
// duplicate enqueue or ending a turn for the wrong character.
//
// In strict mode (development) a violation panics. Otherwise it is logged at Error
// and the caller skips the operation, returning its own sentinel error.
package contract

import (
	"fmt"

	"go.uber.org/zap"
)

// Enforcer decides how a contract violation surfaces.
type Enforcer struct {
	Strict bool
	Logger *zap.Logger
}

// New returns an Enforcer.
//
// Precondition: logger may be nil; a nop logger is substituted.
func New(strict bool, logger *zap.Logger) Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Enforcer{Strict: strict, Logger: logger}
}

// Violation reports a broken contract described by msg.
//
// Postcondition: panics when Strict; otherwise logs at Error and returns.
func (e Enforcer) Violation(msg string, fields ...zap.Field) {
	if e.Strict {
		panic(fmt.Sprintf("contract violation: %s", msg))
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Error("contract violation", append([]zap.Field{zap.String("contract", msg)}, fields...)...)
}

// Check reports a violation when ok is false and returns ok.
func (e Enforcer) Check(ok bool, msg string, fields ...zap.Field) bool {
	if !ok {
		e.Violation(msg, fields...)
	}
	return ok
}
