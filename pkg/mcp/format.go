package mcp

import (
	"fmt"
	"time"

	"github.com/promptmemo/promptmemo/pkg/cache"
	"github.com/promptmemo/promptmemo/pkg/models"
)

// formatHit formats a cache hit as text.
func formatHit(e *cache.Entry, output string) string {
	return fmt.Sprintf("key: %s\nmodel: %s\nservice: %s\nstored: %s\nvalidated: %t\noutput: %s",
		e.Key(), e.Model, e.Service,
		time.Unix(e.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"),
		e.Validated, output)
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}
