package disasm

import (
	"fmt"
	"iter"
)

// ResultSet is the output of one decode call: instructions in byte-stream
// order. It is read-only and safe to share between goroutines.
type ResultSet struct {
	mode  Mode
	insns []Insn
}

// Mode returns the architecture the set was decoded for.
func (rs *ResultSet) Mode() Mode {
	if rs == nil {
		return 0
	}
	return rs.mode
}

// Len returns the number of decoded instructions.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.insns)
}

// At returns the i'th instruction. It panics if i is out of range.
func (rs *ResultSet) At(i int) Insn {
	return rs.insns[i]
}

// All iterates over the instructions with their index.
func (rs *ResultSet) All() iter.Seq2[int, Insn] {
	return func(yield func(int, Insn) bool) {
		for i := 0; i < rs.Len(); i++ {
			if !yield(i, rs.insns[i]) {
				return
			}
		}
	}
}

// End returns the address just past the last instruction, or 0 for an
// empty set.
func (rs *ResultSet) End() uint64 {
	if rs.Len() == 0 {
		return 0
	}
	last := rs.insns[len(rs.insns)-1]
	return last.Address() + uint64(last.Size())
}

// Instructions returns the set's instructions as their concrete variant,
// e.g. Instructions[*Arm64Insn](rs). The returned slice is a fresh copy.
func Instructions[T Insn](rs *ResultSet) ([]T, error) {
	out := make([]T, 0, rs.Len())
	for i, in := range rs.All() {
		v, ok := in.(T)
		if !ok {
			var want T
			return nil, fmt.Errorf("disasm: instruction %d is %T, not %T: %w", i, in, want, ErrModeMismatch)
		}
		out = append(out, v)
	}
	return out, nil
}
