package inventory

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/ftthadmin/internal/pkg"
)

// statsSource is the Stats half of Service, keyed by resource path.
type statsSource struct {
	path  string
	stats func(ctx context.Context) (StatusCounts, error)
}

// StatsHandler serves GET /stats: per-status counts for every resource.
type StatsHandler struct {
	sources []statsSource
}

// Stats handles GET /stats.
func (h *StatsHandler) Stats(c *gin.Context) {
	out := make(map[string]StatusCounts, len(h.sources))
	for _, src := range h.sources {
		counts, err := src.stats(c.Request.Context())
		if err != nil {
			pkg.Error(c, err)
			return
		}
		out[src.path] = counts
	}
	pkg.Success(c, out)
}
