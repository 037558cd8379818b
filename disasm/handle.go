package disasm

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

type state uint8

const (
	stateUninitialized state = iota
	stateOpen
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateClosed:
		return "already closed"
	}
	return "not initialized"
}

// Handle is a live binding to one decoding engine. Decode and the name
// lookups may be called from many goroutines; Close waits for calls in
// flight and every later call fails with a *LifecycleError.
//
// The zero Handle is not open.
type Handle struct {
	mode Mode
	name string
	log  *log.Logger

	mu     sync.RWMutex // guards state and engine
	state  state
	engine Engine

	serial bool       // engine is not reentrant
	engMu  sync.Mutex // held around calls into a non-reentrant engine
}

type options struct {
	engine string
	opener Opener
	logger *log.Logger
}

// Option configures Open.
type Option func(*options)

// WithEngine selects a registered engine by name instead of the default.
func WithEngine(name string) Option {
	return func(o *options) { o.engine = name }
}

// WithOpener opens the engine with op, bypassing the registry.
func WithOpener(op Opener) Option {
	return func(o *options) { o.opener = op }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open creates an engine for mode and returns an open handle. Failures are
// *InitError values carrying the engine's diagnostic.
func Open(mode Mode, opts ...Option) (*Handle, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	if !mode.Valid() {
		return nil, &InitError{Mode: mode, Err: errInvalidMode}
	}

	name, op := "custom", o.opener
	if op == nil {
		var err error
		name, op, err = lookupEngine(o.engine)
		if err != nil {
			return nil, &InitError{Mode: mode, Err: err}
		}
	}
	eng, err := op(mode)
	if err != nil {
		return nil, &InitError{Mode: mode, Err: err}
	}
	if eng == nil {
		return nil, &InitError{Mode: mode, Err: errors.New("engine opener returned nil")}
	}

	h := &Handle{mode: mode, name: name, log: o.logger, state: stateOpen, engine: eng, serial: true}
	if r, ok := eng.(Reentrant); ok && r.Reentrant() {
		h.serial = false
	}
	h.log.Debug("engine opened", "mode", mode, "engine", name, "serialized", h.serial)
	return h, nil
}

// Mode returns the architecture the handle was opened for.
func (h *Handle) Mode() Mode {
	if h == nil {
		return 0
	}
	return h.mode
}

// Engine returns the name of the engine backing the handle.
func (h *Handle) Engine() string {
	if h == nil {
		return ""
	}
	return h.name
}

// Close releases the engine. Closing a handle that is not open fails, so a
// double close is always reported.
func (h *Handle) Close() error {
	if h == nil {
		return &LifecycleError{Op: "close", State: stateUninitialized.String()}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateOpen {
		return &LifecycleError{Op: "close", State: h.state.String()}
	}
	eng := h.engine
	h.engine = nil
	h.state = stateClosed
	h.log.Debug("engine closed", "mode", h.mode, "engine", h.name)
	if err := eng.Close(); err != nil {
		return fmt.Errorf("disasm: close %s engine: %w", h.mode, err)
	}
	return nil
}

// acquire takes the read lock and returns the engine if the handle is open.
// On success the caller must call h.mu.RUnlock.
func (h *Handle) acquire(op string) (Engine, error) {
	if h == nil {
		return nil, &LifecycleError{Op: op, State: stateUninitialized.String()}
	}
	h.mu.RLock()
	if h.state != stateOpen {
		st := h.state
		h.mu.RUnlock()
		return nil, &LifecycleError{Op: op, State: st.String()}
	}
	return h.engine, nil
}

func (h *Handle) call(fn func()) {
	if h.serial {
		h.engMu.Lock()
		defer h.engMu.Unlock()
	}
	fn()
}

// Decode decodes at most count instructions from code (0 = no limit),
// assigning address to the first. Decoding stops at the first offset that
// is not a valid instruction; those trailing bytes are dropped without
// error. Empty code yields an empty set.
func (h *Handle) Decode(code []byte, address uint64, count int) (*ResultSet, error) {
	eng, err := h.acquire("decode")
	if err != nil {
		return nil, err
	}
	if count < 0 {
		h.mu.RUnlock()
		return nil, fmt.Errorf("disasm: decode count %d: %w", count, ErrInvalidCount)
	}
	var batch Decoded
	if len(code) > 0 {
		h.call(func() { batch, err = eng.Disasm(code, address, count) })
	}
	h.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("disasm: decode: %w", err)
	}
	return h.materialize(batch, count)
}

// DecodeAll decodes every instruction in code.
func (h *Handle) DecodeAll(code []byte, address uint64) (*ResultSet, error) {
	return h.Decode(code, address, 0)
}

func (h *Handle) materialize(batch Decoded, count int) (*ResultSet, error) {
	rs := &ResultSet{mode: h.mode}
	if batch == nil {
		return rs, nil
	}
	n := batch.Len()
	if count > 0 && n > count {
		n = count
	}
	rs.insns = make([]Insn, n)
	for i := range n {
		in := batch.Insn(i)
		if in == nil || in.Mode() != h.mode {
			return nil, fmt.Errorf("disasm: decode: entry %d: %w", i, ErrModeMismatch)
		}
		rs.insns[i] = in
	}
	return rs, nil
}

func (h *Handle) lookup(op string, fn func(Engine) string) (string, error) {
	eng, err := h.acquire(op)
	if err != nil {
		return "", err
	}
	defer h.mu.RUnlock()
	var name string
	h.call(func() { name = fn(eng) })
	return name, nil
}

// InsnName returns the mnemonic for an instruction id, or "" if the engine
// does not know it.
func (h *Handle) InsnName(id uint32) (string, error) {
	return h.lookup("insn name", func(e Engine) string { return e.InsnName(id) })
}

// RegName returns the name of a register id, or "" if unknown.
func (h *Handle) RegName(id RegID) (string, error) {
	return h.lookup("reg name", func(e Engine) string { return e.RegName(id) })
}

// GroupName returns the name of a group id, or "" if unknown.
func (h *Handle) GroupName(id GroupID) (string, error) {
	return h.lookup("group name", func(e Engine) string { return e.GroupName(id) })
}
