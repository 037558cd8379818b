package disasm

import (
	"fmt"
	"slices"
	"sync"
)

// Engine is one instance of a decoding engine bound to a single mode.
// A Handle owns its Engine and never calls it after Close.
type Engine interface {
	// Disasm decodes at most count instructions (0 = no limit) from code,
	// the first at address. It stops silently at the first offset that does
	// not decode. The returned batch must not retain code or depend on the
	// engine.
	Disasm(code []byte, address uint64, count int) (Decoded, error)
	// InsnName, RegName and GroupName return "" for unknown ids.
	InsnName(id uint32) string
	RegName(id RegID) string
	GroupName(id GroupID) string
	Close() error
}

// Decoded is the raw output of one Engine.Disasm call. Insn builds the
// immutable value for entry i; the handle calls it outside the engine lock.
type Decoded interface {
	Len() int
	Insn(i int) Insn
}

// Reentrant is implemented by engines that may be called from several
// goroutines at once. Handles serialize calls into any other engine.
type Reentrant interface {
	Reentrant() bool
}

// Opener creates an engine for mode.
type Opener func(mode Mode) (Engine, error)

var registry = struct {
	sync.RWMutex
	names   []string
	openers map[string]Opener
}{openers: make(map[string]Opener)}

// Register makes an engine available under name. The first engine
// registered is the process default. It panics if op is nil or name is
// already registered, and is meant to be called from init.
func Register(name string, op Opener) {
	registry.Lock()
	defer registry.Unlock()
	if op == nil {
		panic("disasm: Register opener is nil")
	}
	if _, dup := registry.openers[name]; dup {
		panic("disasm: Register called twice for engine " + name)
	}
	registry.openers[name] = op
	registry.names = append(registry.names, name)
}

// Engines returns the names of the registered engines, default first.
func Engines() []string {
	registry.RLock()
	defer registry.RUnlock()
	return slices.Clone(registry.names)
}

func lookupEngine(name string) (string, Opener, error) {
	registry.RLock()
	defer registry.RUnlock()
	if name == "" {
		if len(registry.names) == 0 {
			return "", nil, ErrNoEngine
		}
		name = registry.names[0]
	}
	op, ok := registry.openers[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown engine %q", name)
	}
	return name, op, nil
}
