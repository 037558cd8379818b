package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"disarm/disasm"
	"disarm/internal/config"
	"disarm/internal/elfx"
)

// modeValue adapts a disasm.Mode to pflag.Value.
type modeValue struct{ m *disasm.Mode }

var _ pflag.Value = modeValue{}

func newModeValue(m *disasm.Mode) modeValue { return modeValue{m} }

func (v modeValue) String() string {
	if v.m == nil || !v.m.Valid() {
		return ""
	}
	b, _ := v.m.MarshalText()
	return string(b)
}

func (v modeValue) Set(s string) error { return v.m.UnmarshalText([]byte(s)) }
func (v modeValue) Type() string       { return "mode" }

// inputFlags selects where code comes from.
type inputFlags struct {
	file    string
	elf     string
	symbol  string
	section string
	address config.Address
	count   int
	json    bool
	detail  bool
}

func (in *inputFlags) register(fs *pflag.FlagSet, listing bool) {
	fs.StringVarP(&in.file, "file", "f", "", "Read raw code bytes from a file")
	fs.StringVarP(&in.elf, "elf", "e", "", "Read code from an ELF binary")
	fs.StringVarP(&in.symbol, "symbol", "s", "", "ELF symbol to disassemble (raw or demangled name)")
	fs.StringVar(&in.section, "section", "", "ELF section to disassemble (default .text)")
	fs.VarP(&in.address, "address", "a", "Address of the first byte (raw input only)")
	fs.IntVarP(&in.count, "count", "n", 0, "Maximum number of instructions (0 = all)")
	fs.BoolVarP(&in.json, "json", "j", false, "Output JSON")
	if listing {
		fs.BoolVar(&in.detail, "detail", false, "Print operands, registers and groups for each instruction")
	}
}

// source is decodable code plus where it came from.
type source struct {
	name  string
	mode  disasm.Mode
	code  []byte
	addr  uint64
	count int
	img   *elfx.Image
}

func (s *source) Close() error {
	if s.img == nil {
		return nil
	}
	return s.img.Close()
}

// load resolves the input flags and arguments into a source, applying the
// flags that override the config file.
func (a *app) load(cmd *cobra.Command, args []string, in *inputFlags) (*source, error) {
	fs := cmd.Flags()
	if fs.Changed("address") {
		a.cfg.Address = in.address
	}
	if fs.Changed("count") {
		a.cfg.Count = in.count
	}
	if in.json {
		a.cfg.Format = config.FormatJSON
	}
	if fs.Changed("detail") {
		a.cfg.Detail = in.detail
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	src := &source{mode: a.cfg.Mode, addr: uint64(a.cfg.Address), count: a.cfg.Count}
	switch {
	case in.elf != "":
		if len(args) > 0 {
			return nil, errors.New("hex arguments cannot be combined with --elf")
		}
		if err := src.loadELF(in, fs.Changed("mode"), a.cfg.Mode, a.cfg.Symbols); err != nil {
			return nil, err
		}
	case in.file != "":
		if len(args) > 0 {
			return nil, errors.New("hex arguments cannot be combined with --file")
		}
		code, err := os.ReadFile(in.file)
		if err != nil {
			return nil, fmt.Errorf("read code: %w", err)
		}
		src.name, src.code = in.file, code
	default:
		text := strings.Join(args, " ")
		if len(args) == 0 {
			stdin, err := readStdin(cmd.InOrStdin())
			if err != nil {
				return nil, err
			}
			text = stdin
		}
		code, err := parseHex(text)
		if err != nil {
			return nil, err
		}
		src.name, src.code = "hex", code
	}

	slog.Debug("input loaded", "source", src.name, "mode", src.mode, "bytes", len(src.code), "address", fmt.Sprintf("%#x", src.addr))
	return src, nil
}

func (s *source) loadELF(in *inputFlags, modeSet bool, mode disasm.Mode, symbols bool) error {
	img, err := elfx.Open(in.elf)
	if err != nil {
		return err
	}
	if modeSet && mode != img.Mode() {
		img.Close()
		return fmt.Errorf("--mode %s does not match %s image %s", mode, img.Mode(), in.elf)
	}
	s.mode = img.Mode()

	switch {
	case in.symbol != "":
		sym, ok := img.Lookup(in.symbol)
		if !ok {
			img.Close()
			return fmt.Errorf("symbol %q not found in %s", in.symbol, in.elf)
		}
		if sym.Thumb {
			img.Close()
			return fmt.Errorf("symbol %s is Thumb code, which is not supported", sym.Name)
		}
		code, err := img.SymbolBytes(sym)
		if err != nil {
			img.Close()
			return err
		}
		s.name, s.code, s.addr = sym.Name, code, sym.Addr
	default:
		name := in.section
		if name == "" {
			name = ".text"
		}
		sec, ok := img.Section(name)
		if !ok {
			if in.section != "" {
				img.Close()
				return fmt.Errorf("section %s not found in %s", name, in.elf)
			}
			sec = img.Text
		}
		code, err := img.SectionBytes(sec)
		if err != nil {
			img.Close()
			return err
		}
		s.name, s.code, s.addr = sec.Name, code, sec.VA
	}
	if symbols {
		s.img = img
	} else {
		img.Close()
	}
	return nil
}

// readStdin reads hex text from a pipe. An interactive terminal yields an
// error rather than blocking.
func readStdin(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(f.Fd()) {
		return "", errors.New("no code given: pass hex bytes, --file or --elf")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

// parseHex decodes hex text. Whitespace, commas, "0x" prefixes and "\x"
// escapes are ignored, so objdump and C-array dumps paste directly.
func parseHex(s string) ([]byte, error) {
	r := strings.NewReplacer("0x", " ", "0X", " ", `\x`, " ", ",", " ")
	clean := strings.Join(strings.Fields(r.Replace(s)), "")
	if clean == "" {
		return nil, errors.New("no code given: pass hex bytes, --file or --elf")
	}
	code, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return code, nil
}
