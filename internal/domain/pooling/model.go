package pooling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SiteEstimate is one site's published coefficient vector and covariance
// matrix. Row-level records never cross the site boundary; this summary is
// all a site shares. Immutable once published.
type SiteEstimate struct {
	ID          uuid.UUID   `json:"id"`
	Site        string      `json:"site"`
	Coef        []float64   `json:"coef"`
	Cov         [][]float64 `json:"cov"`
	PublishedAt time.Time   `json:"published_at"`
}

// Dim returns the coefficient dimension.
func (s SiteEstimate) Dim() int { return len(s.Coef) }

// PooledEstimate is the precision-weighted global estimate over all sites.
type PooledEstimate struct {
	Coef  []float64   `json:"coef"`
	Cov   [][]float64 `json:"cov"`
	Sites int         `json:"sites"`
}

// EmptyPoolError reports a pooling request with no site estimates. The
// pooling step aborts; no partial result is produced.
type EmptyPoolError struct{}

func (e *EmptyPoolError) Error() string {
	return "pooling requires at least one site estimate"
}

// InvalidCovarianceError reports a covariance matrix that is not symmetric
// positive-definite, is dimensionally inconsistent, or is too close to
// singular to invert meaningfully. Fatal to the pooling step as a whole.
type InvalidCovarianceError struct {
	Site   string
	Reason string
}

func (e *InvalidCovarianceError) Error() string {
	return fmt.Sprintf("invalid covariance for site %q: %s", e.Site, e.Reason)
}
