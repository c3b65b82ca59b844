package pooling

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores published site estimates. Estimates are immutable once
// published; re-publishing for the same site supersedes the prior estimate.
type Repository interface {
	Publish(ctx context.Context, est *SiteEstimate) error
	List(ctx context.Context) ([]SiteEstimate, error)
	GetBySite(ctx context.Context, site string) (*SiteEstimate, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
