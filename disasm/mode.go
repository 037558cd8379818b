package disasm

import (
	"fmt"
	"strings"
)

// Mode selects the instruction set a Handle decodes. It is fixed when the
// handle is opened.
type Mode uint8

const (
	ModeARM32 Mode = iota + 1
	ModeARM64
)

// Modes lists every supported mode in declaration order.
var Modes = []Mode{ModeARM32, ModeARM64}

// Valid reports whether m names a supported architecture.
func (m Mode) Valid() bool {
	return m == ModeARM32 || m == ModeARM64
}

func (m Mode) String() string {
	switch m {
	case ModeARM32:
		return "ARM32"
	case ModeARM64:
		return "ARM64"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode accepts the usual spellings of the two architectures
// ("arm32", "arm", "a32", "arm64", "aarch64", "a64"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arm32", "arm", "a32":
		return ModeARM32, nil
	case "arm64", "aarch64", "a64":
		return ModeARM64, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want arm32 or arm64)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %d", uint8(m))
	}
	return []byte(strings.ToLower(m.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
