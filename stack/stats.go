package stack

import (
	"fmt"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/vstack/cache"
)

// Stats reports the state of a Source's slice cache and decoding.
type Stats struct {
	Cache       cache.Stats
	CachedBytes int
	StripErrors uint64
	Frames      int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d frame(s), cache %d hit(s) %d miss(es) %d eviction(s), %s cached, %d strip error(s)",
		s.Frames, s.Cache.Hits, s.Cache.Misses, s.Cache.Evictions,
		humanize.Bytes(uint64(s.CachedBytes)), s.StripErrors)
}

// Stats returns current cache and decode statistics.
func (s *Source) Stats() Stats {
	var frames int
	if s.Ready() {
		frames = len(s.dir) * s.channels
	}
	s.mu.Lock()
	stats := Stats{
		Cache:       s.decoder.cacheStats(),
		StripErrors: s.stripErrors.Load(),
		Frames:      frames,
	}
	planes := s.decoder.cachedPlanes()
	s.mu.Unlock()

	// Measured outside the lock so readers are not held up.
	for _, plane := range planes {
		stats.CachedBytes += size.Of(plane)
	}
	return stats
}
