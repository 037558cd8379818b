// Package elfx opens ARM ELF binaries, maps virtual addresses to file
// offsets and resolves symbols, so code can be fed to a disasm.Handle.
package elfx

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ianlancetaylor/demangle"
	"golang.org/x/exp/mmap"

	"disarm/disasm"
)

var (
	ErrUnsupportedMachine = errors.New("unsupported ELF machine")
	ErrBigEndian          = errors.New("big-endian ELF images are not supported")
	ErrUnmapped           = errors.New("address is not mapped by any PT_LOAD segment")
	ErrTruncated          = errors.New("segment data lies past the end of the file")
)

type Image struct {
	Path  string
	File  *elf.File
	Loads []Seg
	Text  Section
	PLT   Section
	mode  disasm.Mode
	syms  []Symbol
	r     *mmap.ReaderAt
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

// Symbol is a named address. PLT stubs are reported as "name@plt".
type Symbol struct {
	Name    string
	Addr    uint64
	Size    uint64
	Func    bool
	Dynamic bool
	// Thumb is set for ARM32 functions whose address had the low bit set.
	// Addr has that bit cleared.
	Thumb bool
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s@%#x", s.Name, s.Addr)
}

// Open maps the file at path and parses its ELF headers and symbol tables.
func Open(path string) (*Image, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	f, err := elf.NewFile(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("open elf: %w", err)
	}

	im := &Image{Path: path, File: f, r: r}
	if err := im.detectMode(); err != nil {
		r.Close()
		return nil, err
	}

	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	for _, s := range f.Sections {
		switch s.Name {
		case ".text":
			im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
		case ".plt":
			im.PLT = Section{s.Name, s.Addr, s.Offset, s.Size}
		}
	}

	im.loadSymbols()
	if im.mode == disasm.ModeARM64 {
		im.loadPLTSymbols()
	}
	sort.SliceStable(im.syms, func(i, j int) bool {
		if im.syms[i].Addr != im.syms[j].Addr {
			return im.syms[i].Addr < im.syms[j].Addr
		}
		return im.syms[i].Name < im.syms[j].Name
	})

	// Fallback if stripped.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}
	return im, nil
}

func (im *Image) detectMode() error {
	if im.File.Data != elf.ELFDATA2LSB {
		return ErrBigEndian
	}
	switch im.File.Machine {
	case elf.EM_AARCH64:
		im.mode = disasm.ModeARM64
	case elf.EM_ARM:
		im.mode = disasm.ModeARM32
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMachine, im.File.Machine)
	}
	return nil
}

// Mode is the architecture implied by the ELF machine field.
func (im *Image) Mode() disasm.Mode { return im.mode }

// Close unmaps the file.
func (im *Image) Close() error {
	if im.r == nil {
		return nil
	}
	err := im.r.Close()
	im.r = nil
	im.File = nil
	return err
}

// Section returns the named section header.
func (im *Image) Section(name string) (Section, bool) {
	s := im.File.Section(name)
	if s == nil {
		return Section{}, false
	}
	return Section{s.Name, s.Addr, s.Offset, s.Size}, true
}

// VA2Off translates a virtual address into a file offset using PT_LOAD
// segments. It also returns how many file-backed bytes follow va in its
// segment.
func (im *Image) VA2Off(va uint64) (off, avail uint64, ok bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), l.Filesz - (va - l.Vaddr), true
		}
	}
	return 0, 0, false
}

// ReadVA copies n bytes starting at va. The read is clamped to the end of
// the segment containing va.
func (im *Image) ReadVA(va uint64, n uint64) ([]byte, error) {
	off, avail, ok := im.VA2Off(va)
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnmapped, va)
	}
	size := uint64(im.r.Len())
	if off >= size {
		return nil, fmt.Errorf("%w: %#x at offset %#x", ErrTruncated, va, off)
	}
	n = min(n, avail, size-off)
	buf := make([]byte, n)
	if _, err := im.r.ReadAt(buf, int64(off)); err != nil {
		return nil, fmt.Errorf("read %#x: %w", va, err)
	}
	return buf, nil
}

// SectionBytes returns the file contents of s.
func (im *Image) SectionBytes(s Section) ([]byte, error) {
	return im.ReadVA(s.VA, s.Size)
}

// SymbolBytes returns the bytes of a sized symbol.
func (im *Image) SymbolBytes(s Symbol) ([]byte, error) {
	if s.Size == 0 {
		return nil, fmt.Errorf("symbol %s has no size", s.Name)
	}
	return im.ReadVA(s.Addr, s.Size)
}

// Symbols returns every defined symbol sorted by address.
func (im *Image) Symbols() []Symbol {
	return append([]Symbol(nil), im.syms...)
}

// Lookup finds a symbol by its raw name or, failing that, by its demangled
// name. Functions win over other symbols of the same name.
func (im *Image) Lookup(name string) (Symbol, bool) {
	var found Symbol
	var ok bool
	match := func(s Symbol) {
		if !ok || (s.Func && !found.Func) {
			found, ok = s, true
		}
	}
	for _, s := range im.syms {
		if s.Name == name {
			match(s)
		}
	}
	if ok {
		return found, true
	}
	for _, s := range im.syms {
		if demangle.Filter(s.Name, demangle.NoParams) == name || demangle.Filter(s.Name) == name {
			match(s)
		}
	}
	return found, ok
}

// SymbolAt returns the symbol covering va and va's offset into it. Sized
// symbols cover [Addr, Addr+Size); unsized ones only their own address.
func (im *Image) SymbolAt(va uint64) (Symbol, uint64, bool) {
	i := sort.Search(len(im.syms), func(i int) bool { return im.syms[i].Addr > va })
	for i--; i >= 0; i-- {
		s := im.syms[i]
		if s.Addr == va || va < s.Addr+s.Size {
			return s, va - s.Addr, true
		}
		if s.Size != 0 {
			break
		}
	}
	return Symbol{}, 0, false
}

func (im *Image) loadSymbols() {
	seen := make(map[Symbol]bool)
	add := func(syms []elf.Symbol, dynamic bool) {
		for _, sym := range syms {
			if sym.Value == 0 || sym.Section == elf.SHN_UNDEF || sym.Name == "" {
				continue
			}
			typ := elf.ST_TYPE(sym.Info)
			if typ == elf.STT_SECTION || typ == elf.STT_FILE {
				continue
			}
			// $a, $d and $x mapping symbols mark code/data boundaries.
			if strings.HasPrefix(sym.Name, "$") {
				continue
			}
			s := Symbol{
				Name: sym.Name,
				Addr: sym.Value,
				Size: sym.Size,
				Func: typ == elf.STT_FUNC,
			}
			if im.mode == disasm.ModeARM32 && s.Func && s.Addr&1 != 0 {
				s.Addr &^= 1
				s.Thumb = true
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			s.Dynamic = dynamic
			im.syms = append(im.syms, s)
		}
	}

	// Static symbols are missing from stripped binaries; dynamic ones remain.
	if syms, err := im.File.Symbols(); err == nil {
		add(syms, false)
	}
	if syms, err := im.File.DynamicSymbols(); err == nil {
		add(syms, true)
	}
}

const pltStubSize = 16

// loadPLTSymbols names AArch64 PLT stubs after the dynamic symbols their
// GOT slots are relocated against.
func (im *Image) loadPLTSymbols() {
	if im.PLT.Size == 0 {
		return
	}
	rela := im.File.Section(".rela.plt")
	if rela == nil {
		return
	}
	data, err := rela.Data()
	if err != nil {
		return
	}
	dynsyms, err := im.File.DynamicSymbols()
	if err != nil {
		return
	}

	got := make(map[uint64]string)
	const relaSize = 24
	for off := 0; off+relaSize <= len(data); off += relaSize {
		rOffset := binary.LittleEndian.Uint64(data[off:])
		rInfo := binary.LittleEndian.Uint64(data[off+8:])
		// DynamicSymbols drops the null entry at index 0.
		idx := elf.R_SYM64(rInfo)
		if idx == 0 || int(idx) > len(dynsyms) {
			continue
		}
		got[rOffset] = dynsyms[idx-1].Name
	}

	// PLT[0] is the resolver.
	for i := uint64(1); (i+1)*pltStubSize <= im.PLT.Size; i++ {
		addr := im.PLT.VA + i*pltStubSize
		slot, ok := im.pltStubGOT(addr)
		if !ok {
			continue
		}
		if name, ok := got[slot]; ok {
			im.syms = append(im.syms, Symbol{Name: name + "@plt", Addr: addr, Size: pltStubSize, Func: true, Dynamic: true})
		}
	}
}

// pltStubGOT parses the standard AArch64 PLT stub
//
//	adrp x16, <page>
//	ldr  x17, [x16, #offset]
//	add  x16, x16, #offset
//	br   x17
//
// and returns the address of the GOT slot it loads.
func (im *Image) pltStubGOT(addr uint64) (uint64, bool) {
	stub, err := im.ReadVA(addr, pltStubSize)
	if err != nil || len(stub) < 8 {
		return 0, false
	}

	adrp := binary.LittleEndian.Uint32(stub[0:])
	if adrp&0x9f00001f != 0x90000010 {
		return 0, false
	}
	immLo := int64(adrp>>29) & 3
	immHi := int64(adrp>>5) & 0x7ffff
	page := immHi<<2 | immLo
	if page&(1<<20) != 0 {
		page -= 1 << 21
	}
	base := int64(addr&^0xfff) + page<<12

	ldr := binary.LittleEndian.Uint32(stub[4:])
	if ldr&0xffc003ff != 0xf9400211 {
		return 0, false
	}
	off := int64(ldr>>10) & 0xfff
	return uint64(base + off<<3), true
}
