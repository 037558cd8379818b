package disasm_test

import (
	"encoding/hex"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"disarm/disasm"
	_ "disarm/disasm/xarch"
)

// A small AArch64 function: prologue, a call and the epilogue.
const arm64Sample = "fd7bbfa9fd030091000000900040" + "1e91b3ffff9700008052fd7bc1a8c0035fd6"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func openHandle(t *testing.T, mode disasm.Mode) *disasm.Handle {
	t.Helper()
	h, err := disasm.Open(mode)
	if err != nil {
		t.Fatalf("Open(%s): %v", mode, err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func listing(rs *disasm.ResultSet) []string {
	var out []string
	for _, in := range rs.All() {
		out = append(out, in.String())
	}
	return out
}

func TestDecodeARM64Function(t *testing.T) {
	h := openHandle(t, disasm.ModeARM64)
	rs, err := h.Decode(mustHex(t, arm64Sample), 0x1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 8 {
		t.Fatalf("Len = %d, want 8", rs.Len())
	}
	insns, err := disasm.Instructions[*disasm.Arm64Insn](rs)
	if err != nil {
		t.Fatal(err)
	}

	stp := insns[0]
	if stp.Mnemonic() != "stp" || stp.OpStr() != "x29, x30, [sp, #-0x10]!" {
		t.Errorf("insn 0 = %q %q", stp.Mnemonic(), stp.OpStr())
	}
	if stp.Address() != 0x1000 || stp.Size() != 4 {
		t.Errorf("insn 0 address %#x size %d", stp.Address(), stp.Size())
	}
	if !stp.WritebackRequired() || stp.UpdatesFlags() {
		t.Errorf("insn 0 writeback=%v updatesFlags=%v", stp.WritebackRequired(), stp.UpdatesFlags())
	}
	ops := stp.Operands()
	if len(ops) != 3 {
		t.Fatalf("insn 0 has %d operands", len(ops))
	}
	for i, want := range []disasm.RegID{2, 3} {
		got, err := ops[i].Reg()
		if err != nil || got != want {
			t.Errorf("operand %d reg = %d, %v; want %d", i, got, err, want)
		}
	}
	mem, err := ops[2].Mem()
	if err != nil {
		t.Fatal(err)
	}
	if mem.Disp != -0x10 {
		t.Errorf("operand 2 disp = %d, want -16", mem.Disp)
	}
	if stp.RegsRead() != nil || stp.RegsWrite() != nil || stp.Groups() != nil {
		t.Errorf("stp implicit lists should be absent: %v %v %v", stp.RegsRead(), stp.RegsWrite(), stp.Groups())
	}

	bl := insns[4]
	if bl.Mnemonic() != "bl" {
		t.Fatalf("insn 4 mnemonic = %q", bl.Mnemonic())
	}
	imm, err := bl.Operands()[0].Imm()
	if err != nil || imm != 3804 {
		t.Errorf("bl target = %d, %v; want 3804", imm, err)
	}
	var groups []string
	for _, g := range bl.Groups() {
		name, err := h.GroupName(g)
		if err != nil {
			t.Fatal(err)
		}
		groups = append(groups, name)
	}
	if diff := cmp.Diff([]string{"call", "jump", "branch_relative"}, groups); diff != "" {
		t.Errorf("bl groups (-want +got):\n%s", diff)
	}

	mnemonics := make([]string, len(insns))
	for i, in := range insns {
		mnemonics[i] = in.Mnemonic()
	}
	want := []string{"stp", "mov", "adrp", "add", "bl", "mov", "ldp", "ret"}
	if diff := cmp.Diff(want, mnemonics); diff != "" {
		t.Errorf("mnemonics (-want +got):\n%s", diff)
	}
	if rs.End() != 0x1020 {
		t.Errorf("End = %#x, want 0x1020", rs.End())
	}
}

func TestDecodeAddressesAdvance(t *testing.T) {
	h := openHandle(t, disasm.ModeARM64)
	rs, err := h.Decode(mustHex(t, arm64Sample), 0x400000, 0)
	if err != nil {
		t.Fatal(err)
	}
	addr := uint64(0x400000)
	for i, in := range rs.All() {
		if in.Address() != addr {
			t.Errorf("insn %d at %#x, want %#x", i, in.Address(), addr)
		}
		addr += uint64(in.Size())
	}
}

func TestDecodePrefixConsistency(t *testing.T) {
	h := openHandle(t, disasm.ModeARM64)
	code := mustHex(t, arm64Sample)
	all, err := h.DecodeAll(code, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	for n := 1; n <= 10; n++ {
		rs, err := h.Decode(code, 0x1000, n)
		if err != nil {
			t.Fatal(err)
		}
		if rs.Len() > n {
			t.Errorf("count %d: got %d instructions", n, rs.Len())
		}
		want := listing(all)
		if n < len(want) {
			want = want[:n]
		}
		if diff := cmp.Diff(want, listing(rs)); diff != "" {
			t.Errorf("count %d (-want +got):\n%s", n, diff)
		}
	}
}

func TestDecodeEdgeCases(t *testing.T) {
	h := openHandle(t, disasm.ModeARM64)

	tests := []struct {
		name string
		code []byte
		want int
	}{
		{name: "empty", code: nil, want: 0},
		{name: "short word", code: []byte{0xfd, 0x7b}, want: 0},
		{name: "trailing bytes dropped", code: append(mustHex(t, "fd7bbfa9"), 0x01, 0x02), want: 1},
		{name: "stops at invalid word", code: mustHex(t, "fd7bbfa9 00000000 fd030091"), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := h.Decode(tt.code, 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			if rs.Len() != tt.want {
				t.Errorf("Len = %d, want %d", rs.Len(), tt.want)
			}
		})
	}

	if _, err := h.Decode(mustHex(t, arm64Sample), 0, -1); !errors.Is(err, disasm.ErrInvalidCount) {
		t.Errorf("negative count: err = %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	h, err := disasm.Open(disasm.ModeARM64)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	var zero disasm.Handle
	var nilHandle *disasm.Handle
	tests := []struct {
		name  string
		call  func() error
		state string
	}{
		{"double close", h.Close, "already closed"},
		{"decode after close", func() error { _, err := h.Decode([]byte{0, 0, 0, 0}, 0, 0); return err }, "already closed"},
		{"negative count after close", func() error { _, err := h.Decode([]byte{0, 0, 0, 0}, 0, -1); return err }, "already closed"},
		{"empty decode after close", func() error { _, err := h.DecodeAll(nil, 0); return err }, "already closed"},
		{"insn name after close", func() error { _, err := h.InsnName(1); return err }, "already closed"},
		{"reg name after close", func() error { _, err := h.RegName(1); return err }, "already closed"},
		{"group name after close", func() error { _, err := h.GroupName(1); return err }, "already closed"},
		{"zero handle decode", func() error { _, err := zero.DecodeAll(nil, 0); return err }, "not initialized"},
		{"zero handle close", zero.Close, "not initialized"},
		{"nil handle reg name", func() error { _, err := nilHandle.RegName(1); return err }, "not initialized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, disasm.ErrNotOpen) {
				t.Fatalf("err = %v, want ErrNotOpen", err)
			}
			var le *disasm.LifecycleError
			if !errors.As(err, &le) || le.State != tt.state {
				t.Errorf("err = %#v, want state %q", err, tt.state)
			}
		})
	}
}

func TestOpenFailures(t *testing.T) {
	boom := errors.New("engine refused mode")
	tests := []struct {
		name string
		mode disasm.Mode
		opts []disasm.Option
		text string
	}{
		{name: "invalid mode", mode: 0, text: "invalid argument 'mode'"},
		{name: "unknown engine", mode: disasm.ModeARM32, opts: []disasm.Option{disasm.WithEngine("capstone")}, text: `unknown engine "capstone"`},
		{
			name: "opener error",
			mode: disasm.ModeARM64,
			opts: []disasm.Option{disasm.WithOpener(func(disasm.Mode) (disasm.Engine, error) { return nil, boom })},
			text: boom.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := disasm.Open(tt.mode, tt.opts...)
			if h != nil {
				t.Fatal("handle returned alongside error")
			}
			if !errors.Is(err, disasm.ErrInit) {
				t.Fatalf("err = %v, want ErrInit", err)
			}
			if !strings.Contains(err.Error(), tt.text) {
				t.Errorf("err = %q, want it to carry %q", err, tt.text)
			}
		})
	}
}

func TestNameLookups(t *testing.T) {
	h := openHandle(t, disasm.ModeARM64)
	rs, err := h.DecodeAll(mustHex(t, arm64Sample), 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range rs.All() {
		name, err := h.InsnName(in.ID())
		if err != nil {
			t.Fatal(err)
		}
		if name == "" {
			t.Errorf("no name for %s (id %d)", in.Mnemonic(), in.ID())
		}
	}

	tests := []struct {
		name string
		got  func() (string, error)
		want string
	}{
		{"x29", func() (string, error) { return h.RegName(2) }, "x29"},
		{"x30", func() (string, error) { return h.RegName(3) }, "x30"},
		{"unknown reg", func() (string, error) { return h.RegName(60000) }, ""},
		{"unknown insn", func() (string, error) { return h.InsnName(1 << 30) }, ""},
		{"unknown group", func() (string, error) { return h.GroupName(999) }, ""},
		{"jump group", func() (string, error) { return h.GroupName(disasm.GroupJump) }, "jump"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConcurrentDecode(t *testing.T) {
	h := openHandle(t, disasm.ModeARM64)
	code := mustHex(t, arm64Sample)
	ref, err := h.DecodeAll(code, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	want := listing(ref)

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			for range 50 {
				rs, err := h.DecodeAll(code, 0x1000)
				if err != nil {
					return err
				}
				if diff := cmp.Diff(want, listing(rs)); diff != "" {
					return errors.New(diff)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestCloseDuringDecode(t *testing.T) {
	h, err := disasm.Open(disasm.ModeARM64)
	if err != nil {
		t.Fatal(err)
	}
	code := mustHex(t, arm64Sample)

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for {
				_, err := h.DecodeAll(code, 0)
				if errors.Is(err, disasm.ErrNotOpen) {
					return nil
				}
				if err != nil {
					return err
				}
			}
		})
	}
	time.Sleep(5 * time.Millisecond)
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// countingEngine records how many goroutines are inside it at once.
type countingEngine struct {
	inside, peak atomic.Int32
	reentrant    bool
}

func (e *countingEngine) Disasm([]byte, uint64, int) (disasm.Decoded, error) {
	n := e.inside.Add(1)
	defer e.inside.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return nil, nil
}

func (e *countingEngine) InsnName(uint32) string { return "" }
func (e *countingEngine) RegName(disasm.RegID) string { return "" }
func (e *countingEngine) GroupName(disasm.GroupID) string { return "" }
func (e *countingEngine) Close() error { return nil }
func (e *countingEngine) Reentrant() bool { return e.reentrant }

func TestEngineCallsSerialized(t *testing.T) {
	for _, reentrant := range []bool{false, true} {
		eng := &countingEngine{reentrant: reentrant}
		h, err := disasm.Open(disasm.ModeARM32, disasm.WithOpener(func(disasm.Mode) (disasm.Engine, error) { return eng, nil }))
		if err != nil {
			t.Fatal(err)
		}
		var g errgroup.Group
		for range 8 {
			g.Go(func() error {
				_, err := h.Decode([]byte{1, 2, 3, 4}, 0, 0)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}
		h.Close()
		if !reentrant && eng.peak.Load() != 1 {
			t.Errorf("non-reentrant engine saw %d concurrent calls", eng.peak.Load())
		}
	}
}

func TestInstructionsModeMismatch(t *testing.T) {
	h := openHandle(t, disasm.ModeARM64)
	rs, err := h.DecodeAll(mustHex(t, arm64Sample), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := disasm.Instructions[*disasm.Arm32Insn](rs); !errors.Is(err, disasm.ErrModeMismatch) {
		t.Errorf("err = %v, want ErrModeMismatch", err)
	}
	if rs.Mode() != disasm.ModeARM64 {
		t.Errorf("Mode = %s", rs.Mode())
	}
}
