package repository

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

// RunAuditRepository keeps a bounded history of generation run reports.
type RunAuditRepository interface {
	Append(ctx context.Context, report *domain.RunReport) error
	ListRecent(ctx context.Context, family domain.TicketFamily, limit int) ([]domain.RunReport, error)
}

type runAuditRepository struct {
	client   redis.Cmdable
	keyspace string
	maxRuns  int
}

// NewRunAuditRepository stores reports in one Redis list per family.
func NewRunAuditRepository(client redis.Cmdable, keyspace string, maxRuns int) RunAuditRepository {
	if maxRuns <= 0 {
		maxRuns = 50
	}
	return &runAuditRepository{client: client, keyspace: keyspace, maxRuns: maxRuns}
}

func (r *runAuditRepository) key(family domain.TicketFamily) string {
	return fmt.Sprintf("%s:%s", r.keyspace, family)
}

func (r *runAuditRepository) Append(ctx context.Context, report *domain.RunReport) error {
	if r.client == nil {
		return nil
	}
	encoded, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	key := r.key(report.Family)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, encoded)
	pipe.LTrim(ctx, key, 0, int64(r.maxRuns-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *runAuditRepository) ListRecent(ctx context.Context, family domain.TicketFamily, limit int) ([]domain.RunReport, error) {
	if r.client == nil {
		return []domain.RunReport{}, nil
	}
	if limit <= 0 || limit > r.maxRuns {
		limit = r.maxRuns
	}
	raw, err := r.client.LRange(ctx, r.key(family), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	reports := make([]domain.RunReport, 0, len(raw))
	for _, item := range raw {
		var report domain.RunReport
		if err := json.Unmarshal([]byte(item), &report); err != nil {
			return nil, fmt.Errorf("decode run report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
