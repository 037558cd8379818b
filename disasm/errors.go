package disasm

import (
	"errors"
	"fmt"
)

var (
	// ErrInit is matched by every *InitError.
	ErrInit = errors.New("engine initialization failed")
	// ErrNotOpen is matched by every *LifecycleError.
	ErrNotOpen = errors.New("handle is not open")
	// ErrInvalidOperandKind is matched by every *OperandKindError.
	ErrInvalidOperandKind = errors.New("invalid operand kind")

	ErrNoEngine     = errors.New("no decoding engine registered; import disarm/disasm/xarch")
	ErrModeMismatch = errors.New("instruction variant does not match mode")
	ErrInvalidCount = errors.New("instruction count must not be negative")

	errInvalidMode = errors.New("invalid argument 'mode'")
)

// InitError reports that no engine could be created for Mode. The handle
// that would have been returned does not exist.
type InitError struct {
	Mode Mode
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("disasm: init %s engine: %v", e.Mode, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrInit }

// LifecycleError reports an operation attempted on a handle that is not
// open. State is "not initialized" or "already closed".
type LifecycleError struct {
	Op    string
	State string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("disasm: %s: handle %s", e.Op, e.State)
}

func (e *LifecycleError) Is(target error) bool { return target == ErrNotOpen }

// OperandKindError is returned by an operand accessor whose kind does not
// match the operand's discriminant.
type OperandKindError struct {
	Mode Mode
	Want string
	Got  string
}

func (e *OperandKindError) Error() string {
	return fmt.Sprintf("disasm: %s operand is %s, not %s", e.Mode, e.Got, e.Want)
}

func (e *OperandKindError) Is(target error) bool { return target == ErrInvalidOperandKind }
