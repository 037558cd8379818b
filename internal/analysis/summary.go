package analysis

import (
	"cmp"
	"slices"

	"disarm/disasm"
)

// Count is one histogram bucket.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary describes a decoded range.
type Summary struct {
	Mode         disasm.Mode `json:"mode"`
	Start        uint64      `json:"start"`
	End          uint64      `json:"end"`
	Instructions int         `json:"instructions"`
	Bytes        int         `json:"bytes"`
	// Undecoded is the number of input bytes left after the last
	// instruction, either a trailing partial word or an invalid encoding.
	Undecoded int      `json:"undecoded"`
	Groups    []Count  `json:"groups"`
	Mnemonics []Count  `json:"mnemonics"`
	Calls     []string `json:"calls,omitempty"`
}

// Summarize counts groups and mnemonics over rs. inputLen is the size of
// the buffer that was decoded.
func Summarize(rs *disasm.ResultSet, names Names, img Image, start uint64, inputLen int) Summary {
	s := Summary{
		Mode:         rs.Mode(),
		Start:        start,
		End:          rs.End(),
		Instructions: rs.Len(),
	}
	groups := make(map[string]int)
	mnems := make(map[string]int)
	seenCall := make(map[string]bool)

	for _, in := range rs.All() {
		s.Bytes += in.Size()
		mnems[in.Mnemonic()]++
		for _, g := range in.Groups() {
			name, err := names.GroupName(g)
			if err != nil || name == "" {
				continue
			}
			groups[name]++
		}
		if !in.InGroup(disasm.GroupCall) {
			continue
		}
		if t, ok := branchTarget(in); ok {
			name := SymbolName(img, t)
			if name == "" {
				continue
			}
			if !seenCall[name] {
				seenCall[name] = true
				s.Calls = append(s.Calls, name)
			}
		}
	}
	if rs.Len() == 0 {
		s.End = start
	}
	s.Undecoded = inputLen - s.Bytes
	s.Groups = histogram(groups, 0)
	s.Mnemonics = histogram(mnems, TopMnemonics)
	return s
}

// histogram sorts buckets by descending count, then name, keeping at most
// limit entries when limit > 0.
func histogram(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
