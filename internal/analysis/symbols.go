package analysis

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ianlancetaylor/demangle"
)

var (
	demangleCache *lru.Cache
	demangleHits  atomic.Int64
	demangleMiss  atomic.Int64
)

func init() {
	c, err := lru.New(DemangleCacheSize)
	if err != nil {
		panic(err)
	}
	demangleCache = c
}

// CachedDemangle demangles a C++ or Rust symbol, caching the result. Names
// that are not mangled come back unchanged.
func CachedDemangle(mangled string) string {
	if v, ok := demangleCache.Get(mangled); ok {
		demangleHits.Add(1)
		return v.(string)
	}
	demangleMiss.Add(1)
	demangled := demangle.Filter(mangled, demangle.NoClones)
	demangleCache.Add(mangled, demangled)
	return demangled
}

// DemangleCacheStats reports the cache size and hit/miss counters.
func DemangleCacheStats() (entries int, hits, misses int64) {
	return demangleCache.Len(), demangleHits.Load(), demangleMiss.Load()
}

// SymbolName names va as "sym" or "sym+0xoff" using img. It returns "" when
// img is nil or no symbol covers va.
func SymbolName(img Image, va uint64) string {
	if img == nil {
		return ""
	}
	s, off, ok := img.SymbolAt(va)
	if !ok {
		return ""
	}
	name := CachedDemangle(s.Name)
	if off == 0 {
		return name
	}
	return fmt.Sprintf("%s+%#x", name, off)
}
