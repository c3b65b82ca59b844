package pooling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepo returns the PostgreSQL-backed site-estimate repository.
func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Publish(ctx context.Context, est *SiteEstimate) error {
	est.ID = uuid.New()
	est.PublishedAt = time.Now().UTC()

	coef, err := json.Marshal(est.Coef)
	if err != nil {
		return err
	}
	cov, err := json.Marshal(est.Cov)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO site_estimate (id, site, coef, cov, published_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (site) DO UPDATE
		SET id = EXCLUDED.id, coef = EXCLUDED.coef, cov = EXCLUDED.cov,
		    published_at = EXCLUDED.published_at`,
		est.ID, est.Site, coef, cov, est.PublishedAt)
	return err
}

func (r *repoPG) List(ctx context.Context) ([]SiteEstimate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, site, coef, cov, published_at
		FROM site_estimate ORDER BY site`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SiteEstimate
	for rows.Next() {
		var (
			est  SiteEstimate
			coef []byte
			cov  []byte
		)
		if err := rows.Scan(&est.ID, &est.Site, &coef, &cov, &est.PublishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(coef, &est.Coef); err != nil {
			return nil, fmt.Errorf("decode coef for site %s: %w", est.Site, err)
		}
		if err := json.Unmarshal(cov, &est.Cov); err != nil {
			return nil, fmt.Errorf("decode cov for site %s: %w", est.Site, err)
		}
		out = append(out, est)
	}
	return out, rows.Err()
}

func (r *repoPG) GetBySite(ctx context.Context, site string) (*SiteEstimate, error) {
	var (
		est  SiteEstimate
		coef []byte
		cov  []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, site, coef, cov, published_at
		FROM site_estimate WHERE site = $1`, site).
		Scan(&est.ID, &est.Site, &coef, &cov, &est.PublishedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(coef, &est.Coef); err != nil {
		return nil, fmt.Errorf("decode coef for site %s: %w", site, err)
	}
	if err := json.Unmarshal(cov, &est.Cov); err != nil {
		return nil, fmt.Errorf("decode cov for site %s: %w", site, err)
	}
	return &est, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM site_estimate WHERE id = $1`, id)
	return err
}
