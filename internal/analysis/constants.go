// Package analysis annotates decoded ARM listings with symbol names,
// resolved addresses and string literals, and summarizes them.
package analysis

const (
	// MaxStringLength is the maximum length for string extraction
	MaxStringLength = 256

	// DemangleCacheSize bounds the number of cached demangled names.
	DemangleCacheSize = 4096

	// TopMnemonics is how many mnemonics a Summary keeps.
	TopMnemonics = 10
)
