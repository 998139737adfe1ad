package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

// querier is the subset of pgxpool.Pool used by the read repositories.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ScheduleRepository reads maintenance schedules.
type ScheduleRepository interface {
	ListActiveWithAsset(ctx context.Context) ([]domain.MaintenanceSchedule, error)
}

type scheduleRepository struct {
	db querier
}

// NewScheduleRepository instantiates repository.
func NewScheduleRepository(db querier) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) ListActiveWithAsset(ctx context.Context) ([]domain.MaintenanceSchedule, error) {
	const query = `
        SELECT ms.id::text, ms.asset_id::text, ms.maintenance_name, ms.start_date,
               ms.frequency_unit, ms.frequency_value, COALESCE(ms.owner, ''), ms.is_active,
               a.id::text, a.name, COALESCE(a.location_code, ''), COALESCE(a.floor, ''),
               COALESCE(a.category, ''), COALESCE(a.subcategory, '')
        FROM maintenance_schedules ms
        JOIN assets a ON a.id = ms.asset_id
        WHERE ms.is_active = TRUE
        ORDER BY a.location_code, a.category, a.name, ms.maintenance_name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MaintenanceSchedule
	for rows.Next() {
		var (
			s    domain.MaintenanceSchedule
			a    domain.Asset
			unit string
		)
		if err := rows.Scan(
			&s.ID,
			&s.AssetRef,
			&s.MaintenanceName,
			&s.StartDate,
			&unit,
			&s.FrequencyValue,
			&s.Owner,
			&s.IsActive,
			&a.ID,
			&a.Name,
			&a.LocationCode,
			&a.Floor,
			&a.Category,
			&a.Subcategory,
		); err != nil {
			return nil, err
		}
		s.FrequencyUnit = normalizeUnit(unit)
		if s.FrequencyValue < 1 {
			s.FrequencyValue = 1
		}
		s.Asset = &a
		result = append(result, s)
	}
	return result, rows.Err()
}

func normalizeUnit(unit string) domain.FrequencyUnit {
	return domain.FrequencyUnit(strings.ToLower(strings.TrimSpace(unit)))
}
