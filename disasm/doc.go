// Package disasm turns raw ARM32 and ARM64 machine code into typed
// instructions.
//
// A Handle binds one architecture mode to a decoding engine. Engines are
// registered by name, the way database/sql drivers are; the default engine
// lives in disarm/disasm/xarch and registers itself when imported:
//
//	import (
//		"disarm/disasm"
//		_ "disarm/disasm/xarch"
//	)
//
//	h, err := disasm.Open(disasm.ModeARM64)
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//
//	rs, err := h.DecodeAll(code, 0x1000)
//	for _, in := range rs.All() {
//		fmt.Println(in)
//	}
//
// Decoded instructions are immutable values tagged by architecture:
// *Arm32Insn or *Arm64Insn. Their operands are tagged unions whose
// accessors fail with ErrInvalidOperandKind when asked for the wrong kind.
//
// A Handle is safe for concurrent use. Calls into an engine that does not
// declare itself Reentrant are serialized per handle. Close waits for calls
// already in flight, and every later call reports a *LifecycleError.
package disasm
