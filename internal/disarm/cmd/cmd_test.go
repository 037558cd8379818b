package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/google/go-cmp/cmp"

	"disarm/disasm"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DISARM_NO_COLOR", "1")
	t.Setenv("DISARM_MODE", "")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListing(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   string
		want string
	}{
		{
			name: "arm64 args",
			args: []string{"1f2003d5", "c0035fd6"},
			want: "0          nop\n4          ret\n",
		},
		{
			name: "stdin with 0x and commas",
			in:   "0x1f, 0x20, 0x03, 0xd5\n",
			args: []string{"-a", "0x1000"},
			want: "1000       nop\n",
		},
		{
			name: "count",
			args: []string{"-n", "1", "1f2003d5 c0035fd6"},
			want: "0          nop\n",
		},
		{
			name: "arm32",
			args: []string{"-m", "arm32", "-a", "0x8000", "1eff2fe1"},
			want: "8000       bx     lr\n",
		},
		{
			name: "trailing garbage dropped",
			args: []string{"c0035fd6", "ffff"},
			want: "0          ret\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.in, tt.args...)
			if err != nil {
				t.Fatalf("run: %v\n%s", err, got)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("output (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListingDetail(t *testing.T) {
	got, err := run(t, "", "--detail", "c0035fd6")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"bytes: c0035fd6", "groups: jump, return"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestListingJSON(t *testing.T) {
	got, err := run(t, "", "-j", "--detail", "1f2003d5", "c0035fd6")
	if err != nil {
		t.Fatal(err)
	}
	var doc listingDoc
	if err := json.Unmarshal([]byte(got), &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, got)
	}
	if doc.Mode != disasm.ModeARM64 || doc.Engine != "xarch" || len(doc.Instructions) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	ret := doc.Instructions[1]
	if ret.Address != "0x4" || ret.Mnemonic != "ret" || ret.Bytes != "c0035fd6" {
		t.Errorf("ret = %+v", ret)
	}
	if ret.Detail == nil || !cmp.Equal(ret.Detail.Groups, []string{"jump", "return"}) {
		t.Errorf("ret detail = %+v", ret.Detail)
	}
}

func TestListingErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad hex", []string{"zz"}},
		{"odd hex", []string{"1f2"}},
		{"negative count", []string{"-n", "-1", "c0035fd6"}},
		{"bad mode", []string{"-m", "mips", "c0035fd6"}},
		{"no input", nil},
		{"missing file", []string{"-f", "/nonexistent/code.bin"}},
		{"hex with file", []string{"-f", "x.bin", "c0035fd6"}},
		{"unknown engine", []string{"--engine", "nope", "c0035fd6"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, "", tt.args...); err == nil {
				t.Errorf("run %v succeeded", tt.args)
			}
		})
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"c0035fd6", []byte{0xc0, 0x03, 0x5f, 0xd6}},
		{"c0 03 5f d6", []byte{0xc0, 0x03, 0x5f, 0xd6}},
		{`\xc0\x03`, []byte{0xc0, 0x03}},
		{"0xC0,0x03\n", []byte{0xc0, 0x03}},
	}
	for _, tt := range tests {
		got, err := parseHex(tt.in)
		if err != nil {
			t.Errorf("parseHex(%q): %v", tt.in, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("parseHex(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}
	if _, err := parseHex("   "); err == nil {
		t.Error("parseHex(blank) succeeded")
	}
}

func TestNames(t *testing.T) {
	got, err := run(t, "", "names", "group", "1", "2", "0x3", "999")
	if err != nil {
		t.Fatal(err)
	}
	want := "1\tjump\n2\tcall\n3\treturn\n999\t(unknown)\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}

	got, err = run(t, "", "-m", "arm32", "names", "group", "--all")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "7\tbranch_relative\n") {
		t.Errorf("--all output missing branch_relative:\n%s", got)
	}

	for _, args := range [][]string{{"names", "flag", "1"}, {"names", "reg"}, {"names", "reg", "x"}} {
		if _, err := run(t, "", args...); err == nil {
			t.Errorf("run %v succeeded", args)
		}
	}
}

func TestStress(t *testing.T) {
	got, err := run(t, "", "stress", "-w", "4", "-i", "25", "fd7bbfa9 fd030091 c0035fd6")
	if err != nil {
		t.Fatalf("stress: %v\n%s", err, got)
	}
	if !strings.Contains(got, "PASS") || !strings.Contains(got, "100 decodes, 300 instructions") {
		t.Errorf("output = %q", got)
	}
}

func TestStressRejectsEmptyRuns(t *testing.T) {
	for _, args := range [][]string{
		{"stress", "-w", "0", "c0035fd6"},
		{"stress", "-i", "0", "c0035fd6"},
		{"stress", "-w", "-3", "c0035fd6"},
	} {
		got, err := run(t, "", args...)
		if err == nil || strings.Contains(got, "PASS") {
			t.Errorf("run %v = %q, %v; want an error", args, got, err)
		}
	}

	h, err := disasm.Open(disasm.ModeARM64)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	src := &source{code: []byte{0xc0, 0x03, 0x5f, 0xd6}}
	if res, err := runStress(context.Background(), h, src, 0, 10); err == nil || res.Decodes != 0 {
		t.Errorf("runStress with no workers = %+v, %v", res, err)
	}
}

func TestReport(t *testing.T) {
	got, err := run(t, "", "report", "--raw", "1f2003d5", "c0035fd6")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# hex", "**Instructions:** 2 (8 bytes)", "| return | 1 |", "## Listing", "4          ret"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}

	got, err = run(t, "", "report", "-j", "1f2003d5", "c0035fd6", "ff")
	if err != nil {
		t.Fatal(err)
	}
	var sum struct {
		Instructions int `json:"instructions"`
		Undecoded    int `json:"undecoded"`
	}
	if err := json.Unmarshal([]byte(got), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Instructions != 2 || sum.Undecoded != 1 {
		t.Errorf("summary = %+v", sum)
	}

	if _, err := run(t, "", "report", "--theme", "neon", "c0035fd6"); err == nil {
		t.Error("unknown theme accepted")
	}
}

func TestSchema(t *testing.T) {
	got, err := run(t, "", "schema")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"workers"`, `"iterations"`, `"mode"`} {
		if !strings.Contains(got, want) {
			t.Errorf("schema missing %s", want)
		}
	}
}

func testModel(t *testing.T) model {
	t.Helper()
	h, err := disasm.Open(disasm.ModeARM64)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	src := &source{name: "hex", mode: disasm.ModeARM64, code: []byte{0x1f, 0x20, 0x03, 0xd5, 0xc0, 0x03, 0x5f, 0xd6}}
	rs, err := h.DecodeAll(src.code, 0)
	if err != nil {
		t.Fatal(err)
	}
	return newModel(h, rs, src)
}

func TestModelNavigation(t *testing.T) {
	m := testModel(t)
	if m.hasSymbols() {
		t.Fatal("hex input has symbols")
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(model)
	if m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d", m.width, m.height)
	}

	steps := []struct {
		key  string
		want viewMode
	}{
		{"r", viewReport},
		{"l", viewListing},
		{"s", viewListing},
		{"tab", viewReport},
		{"tab", viewListing},
		{"shift+tab", viewReport},
	}
	for _, s := range steps {
		var handled bool
		m, handled, _ = m.handleKey(s.key)
		if !handled || m.mode != s.want {
			t.Fatalf("after %q: mode = %d, handled = %v, want %d", s.key, m.mode, handled, s.want)
		}
	}
	if _, handled, _ := m.handleKey("x"); handled {
		t.Error("unbound key handled")
	}
}

func TestModelSymbolDecoded(t *testing.T) {
	m := testModel(t)
	m.decoding = "foo"
	m.mode = viewReport

	next, _ := m.Update(symbolDecodedMsg{name: "foo", listing: "1000       ret", report: "# foo\n"})
	m = next.(model)
	if m.decoding != "" || m.mode != viewListing || m.title != "foo" {
		t.Errorf("model = decoding %q mode %d title %q", m.decoding, m.mode, m.title)
	}
	if !strings.Contains(m.View(), "ret") {
		t.Errorf("view missing listing:\n%s", m.View())
	}

	next, _ = m.Update(symbolDecodedMsg{name: "bar", err: errors.New("boom")})
	m = next.(model)
	if m.title != "foo" || !strings.Contains(m.View(), "boom") {
		t.Errorf("error not shown: title %q\n%s", m.title, m.View())
	}
}
