// Package xarch is the default decoding engine for package disasm, built on
// the golang.org/x/arch ARM decoders. Importing it registers the engine
// under the name "xarch":
//
//	import _ "disarm/disasm/xarch"
package xarch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"

	"disarm/disasm"
)

// Name is the engine's registry name.
const Name = "xarch"

func init() {
	disasm.Register(Name, Open)
}

var errClosed = errors.New("xarch: engine closed")

// decodeMu guards the decoders' shared coverage tables, which every Decode
// call writes.
var decodeMu sync.Mutex

// Engine decodes one architecture mode.
type Engine struct {
	mode   disasm.Mode
	closed atomic.Bool
}

// Open returns an engine for mode.
func Open(mode disasm.Mode) (disasm.Engine, error) {
	switch mode {
	case disasm.ModeARM32, disasm.ModeARM64:
		return &Engine{mode: mode}, nil
	}
	return nil, fmt.Errorf("xarch: unsupported mode %s", mode)
}

// rawInsn is one decoded instruction before translation.
type rawInsn struct {
	addr uint64
	enc  [4]byte
	a32  armasm.Inst
	a64  arm64asm.Inst
}

type batch struct {
	mode disasm.Mode
	raw  []rawInsn
}

func (b *batch) Len() int { return len(b.raw) }

func (b *batch) Insn(i int) disasm.Insn {
	if b.mode == disasm.ModeARM64 {
		return buildARM64(b.raw[i])
	}
	return buildARM32(b.raw[i])
}

// Disasm decodes fixed-width 4-byte instructions until count is reached,
// the input runs out, or a word fails to decode.
func (e *Engine) Disasm(code []byte, address uint64, count int) (disasm.Decoded, error) {
	if e.closed.Load() {
		return nil, errClosed
	}
	n := len(code) / 4
	if count > 0 && count < n {
		n = count
	}
	out := &batch{mode: e.mode, raw: make([]rawInsn, 0, n)}

	decodeMu.Lock()
	defer decodeMu.Unlock()
	for off := 0; len(out.raw) < n; off += 4 {
		r := rawInsn{addr: address + uint64(off)}
		copy(r.enc[:], code[off:off+4])
		var err error
		if e.mode == disasm.ModeARM64 {
			r.a64, err = arm64asm.Decode(r.enc[:])
		} else {
			r.a32, err = armasm.Decode(r.enc[:], armasm.ModeARM)
		}
		if err != nil {
			break
		}
		out.raw = append(out.raw, r)
	}
	return out, nil
}

func (e *Engine) InsnName(id uint32) string {
	if e.mode == disasm.ModeARM64 {
		return lookupName(arm64InsnNames, id)
	}
	return lookupName(arm32InsnNames, id)
}

func (e *Engine) RegName(id disasm.RegID) string {
	if e.mode == disasm.ModeARM64 {
		return a64RegName(id)
	}
	return a32RegName(id)
}

func (e *Engine) GroupName(id disasm.GroupID) string {
	if name := disasm.GenericGroupName(id); name != "" {
		return name
	}
	if e.mode == disasm.ModeARM64 {
		return arm64GroupNames[id]
	}
	return arm32GroupNames[id]
}

func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return errClosed
	}
	return nil
}
