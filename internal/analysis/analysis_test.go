package analysis

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"disarm/disasm"
	_ "disarm/disasm/xarch"
	"disarm/internal/elfx"
)

// fakeImage is a sparse memory map with a sorted symbol list.
type fakeImage struct {
	syms []elfx.Symbol
	mem  map[uint64][]byte
}

func (f *fakeImage) SymbolAt(va uint64) (elfx.Symbol, uint64, bool) {
	for _, s := range f.syms {
		if va == s.Addr || (va > s.Addr && va < s.Addr+s.Size) {
			return s, va - s.Addr, true
		}
	}
	return elfx.Symbol{}, 0, false
}

func (f *fakeImage) ReadVA(va, n uint64) ([]byte, error) {
	for base, b := range f.mem {
		if va >= base && va < base+uint64(len(b)) {
			b = b[va-base:]
			return b[:min(n, uint64(len(b)))], nil
		}
	}
	return nil, errors.New("unmapped")
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func decode(t *testing.T, mode disasm.Mode, code []byte, addr uint64) (*disasm.ResultSet, *disasm.Handle) {
	t.Helper()
	h, err := disasm.Open(mode)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	rs, err := h.DecodeAll(code, addr)
	if err != nil {
		t.Fatal(err)
	}
	return rs, h
}

const arm64Func = "fd7bbfa9 fd030091 00000090 00401e91 04000094 fd7bc1a8 c0035fd6 1f2003d5 c0035fd6"

func arm64Image() *fakeImage {
	return &fakeImage{
		syms: []elfx.Symbol{
			{Name: "main", Addr: 0x1000, Size: 0x20, Func: true},
			{Name: "_ZN3bar3bazEv", Addr: 0x1020, Size: 4, Func: true},
		},
		mem: map[uint64][]byte{0x1790: []byte("hello world\x00")},
	}
}

func TestAnnotateARM64(t *testing.T) {
	rs, h := decode(t, disasm.ModeARM64, mustHex(t, arm64Func), 0x1000)
	listing := Annotate(rs, h, arm64Image())

	type line struct {
		VA          uint64
		Mnemonic    string
		Annotations []string
	}
	var got []line
	for _, a := range listing {
		got = append(got, line{a.VA, a.Mnemonic, a.Annotations})
	}
	want := []line{
		{0x1000, "main:", nil},
		{0x1000, "stp", nil},
		{0x1004, "mov", nil},
		{0x1008, "adrp", nil},
		{0x100c, "add", []string{"0x1790", `"hello world"`}},
		{0x1010, "bl", []string{"bar::baz()"}},
		{0x1014, "ldp", nil},
		{0x1018, "ret", nil},
		{0x101c, "nop", nil},
		{0x1020, "bar::baz():", nil},
		{0x1020, "ret", nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listing (-want +got):\n%s", diff)
	}
}

func TestAnnotateWithoutImage(t *testing.T) {
	rs, h := decode(t, disasm.ModeARM64, mustHex(t, arm64Func), 0x1000)
	listing := Annotate(rs, h, nil)
	if len(listing) != rs.Len() {
		t.Fatalf("%d lines, want %d", len(listing), rs.Len())
	}
	add := listing[3]
	if diff := cmp.Diff([]string{"0x1790"}, add.Annotations); diff != "" {
		t.Errorf("add annotations (-want +got):\n%s", diff)
	}
	if listing[4].Annotations != nil {
		t.Errorf("bl annotations = %v", listing[4].Annotations)
	}
}

func TestAnnotateARM32Literal(t *testing.T) {
	// ldr r1, [pc, #4]; bx lr; then the literal 0x9000 at 0x800c.
	code := mustHex(t, "04109fe5 1eff2fe1")
	img := &fakeImage{mem: map[uint64][]byte{
		0x8000: append(append(code, 0, 0, 0, 0), 0x00, 0x90, 0x00, 0x00),
		0x9000: []byte("arm literal\x00"),
	}}
	rs, h := decode(t, disasm.ModeARM32, code, 0x8000)
	listing := Annotate(rs, h, img)
	want := []string{"[0x800c]", "=0x9000", `"arm literal"`}
	if diff := cmp.Diff(want, listing[0].Annotations); diff != "" {
		t.Errorf("ldr annotations (-want +got):\n%s", diff)
	}
}

func TestAnnotatedInstString(t *testing.T) {
	tests := []struct {
		name string
		in   AnnotatedInst
		want string
	}{
		{"label", AnnotatedInst{VA: 0x1000, Mnemonic: "main:"}, "1000  main:"},
		{"plain", AnnotatedInst{VA: 0x1018, Mnemonic: "ret"}, "1018       ret"},
		{
			"annotated",
			AnnotatedInst{VA: 0x1010, Mnemonic: "bl", Operands: "#0x1020", Annotations: []string{"foo", "bar"}},
			"1010       bl     #0x1020                        ; foo, bar",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	code := mustHex(t, arm64Func)
	rs, h := decode(t, disasm.ModeARM64, append(code, 0xff, 0xff), 0x1000)
	s := Summarize(rs, h, arm64Image(), 0x1000, len(code)+2)

	if s.Instructions != 9 || s.Bytes != 36 || s.Undecoded != 2 || s.End != 0x1024 {
		t.Errorf("summary = %+v", s)
	}
	wantGroups := []Count{{"jump", 3}, {"return", 2}, {"branch_relative", 1}, {"call", 1}}
	if diff := cmp.Diff(wantGroups, s.Groups); diff != "" {
		t.Errorf("groups (-want +got):\n%s", diff)
	}
	if s.Mnemonics[0] != (Count{"ret", 2}) {
		t.Errorf("top mnemonic = %+v", s.Mnemonics[0])
	}
	if diff := cmp.Diff([]string{"bar::baz()"}, s.Calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	rs, h := decode(t, disasm.ModeARM32, nil, 0x400)
	s := Summarize(rs, h, nil, 0x400, 0)
	if s.Instructions != 0 || s.End != 0x400 || len(s.Groups) != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestCachedDemangle(t *testing.T) {
	_, hits0, _ := DemangleCacheStats()
	for range 3 {
		if got := CachedDemangle("_ZN3foo3barEi"); got != "foo::bar(int)" {
			t.Fatalf("CachedDemangle = %q", got)
		}
	}
	if got := CachedDemangle("plain_c"); got != "plain_c" {
		t.Errorf("CachedDemangle(plain_c) = %q", got)
	}
	entries, hits, _ := DemangleCacheStats()
	if entries < 2 || hits-hits0 < 2 {
		t.Errorf("entries = %d, hits = %d", entries, hits-hits0)
	}
}

func TestReadCString(t *testing.T) {
	img := &fakeImage{mem: map[uint64][]byte{
		0x100: []byte("ok string\x00"),
		0x200: []byte("ab\x00"),
		0x300: {0x01, 0x02, 0x03, 0x04, 0x05, 0},
	}}
	tests := []struct {
		va   uint64
		want string
		ok   bool
	}{
		{0x100, "ok string", true},
		{0x200, "", false},
		{0x300, "", false},
		{0x400, "", false},
	}
	for _, tt := range tests {
		got, ok := ReadCString(img, tt.va, minStringLen, MaxStringLength)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ReadCString(%#x) = %q, %v", tt.va, got, ok)
		}
	}
	if _, ok := ReadCString(nil, 0x100, 1, 8); ok {
		t.Error("ReadCString(nil) succeeded")
	}
}
