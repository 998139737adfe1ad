package repository

import (
	"context"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

// CoverageRepository reads warranty and contract coverage records.
type CoverageRepository interface {
	ListActiveRenewalWithAsset(ctx context.Context) ([]domain.CoverageRecord, error)
}

type coverageRepository struct {
	db querier
}

// NewCoverageRepository instantiates repository.
func NewCoverageRepository(db querier) CoverageRepository {
	return &coverageRepository{db: db}
}

func (r *coverageRepository) ListActiveRenewalWithAsset(ctx context.Context) ([]domain.CoverageRecord, error) {
	const query = `
        SELECT cr.id::text, cr.asset_id::text, cr.coverage_type, cr.end_date, cr.is_active,
               a.id::text, a.name, COALESCE(a.location_code, ''), COALESCE(a.floor, ''),
               COALESCE(a.category, ''), COALESCE(a.subcategory, '')
        FROM coverage_records cr
        JOIN assets a ON a.id = cr.asset_id
        WHERE cr.is_active = TRUE
          AND LOWER(TRIM(cr.coverage_type)) = $1
        ORDER BY a.location_code, a.category, a.name`

	rows, err := r.db.Query(ctx, query, domain.CoverageTypeRenewalContract)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CoverageRecord
	for rows.Next() {
		var (
			c domain.CoverageRecord
			a domain.Asset
		)
		if err := rows.Scan(
			&c.ID,
			&c.AssetRef,
			&c.CoverageType,
			&c.EndDate,
			&c.IsActive,
			&a.ID,
			&a.Name,
			&a.LocationCode,
			&a.Floor,
			&a.Category,
			&a.Subcategory,
		); err != nil {
			return nil, err
		}
		c.Asset = &a
		result = append(result, c)
	}
	return result, rows.Err()
}
