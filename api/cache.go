package api

import "github.com/dfryer1193/inkblog/blog/cache"

type CacheStats struct {
	Entries       int   `json:"entries"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Renders       int64 `json:"renders"`
	Invalidations int64 `json:"invalidations"`
}

func NewCacheStats(s cache.Stats) CacheStats {
	return CacheStats{
		Entries:       s.Entries,
		Hits:          s.Hits,
		Misses:        s.Misses,
		Renders:       s.Renders,
		Invalidations: s.Invalidations,
	}
}
