package pooling

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// PublishEstimate validates and stores one site's estimate. Validation runs
// at publish time so a bad covariance is rejected at the boundary instead of
// poisoning a later pooling request.
func (s *Service) PublishEstimate(ctx context.Context, est *SiteEstimate) error {
	if est.Site == "" {
		return fmt.Errorf("site is required")
	}
	if est.Dim() == 0 {
		return &InvalidCovarianceError{Site: est.Site, Reason: "empty coefficient vector"}
	}
	if _, err := toSymmetric(*est); err != nil {
		return err
	}
	return s.repo.Publish(ctx, est)
}

// ListEstimates returns all published site estimates.
func (s *Service) ListEstimates(ctx context.Context) ([]SiteEstimate, error) {
	return s.repo.List(ctx)
}

// GetEstimate returns the current published estimate for one site.
func (s *Service) GetEstimate(ctx context.Context, site string) (*SiteEstimate, error) {
	if site == "" {
		return nil, fmt.Errorf("site is required")
	}
	return s.repo.GetBySite(ctx, site)
}

// RetractEstimate withdraws a site's published estimate so it no longer
// contributes to pooling.
func (s *Service) RetractEstimate(ctx context.Context, site string) error {
	est, err := s.repo.GetBySite(ctx, site)
	if err != nil {
		return fmt.Errorf("look up estimate for site %s: %w", site, err)
	}
	return s.repo.Delete(ctx, est.ID)
}

// PoolAll pools every published estimate into one global estimate. The step
// is all-or-nothing: any invalid covariance aborts it with no partial
// result.
func (s *Service) PoolAll(ctx context.Context) (*PooledEstimate, error) {
	estimates, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list site estimates: %w", err)
	}
	return Pool(estimates)
}
