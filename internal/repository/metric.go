package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

// MetricRepo stores per-run metric samples, written at both success and
// failure of a stage attempt.
type MetricRepo struct {
	pool *pgxpool.Pool
}

// NewMetricRepo creates a MetricRepo.
func NewMetricRepo(pool *pgxpool.Pool) *MetricRepo {
	return &MetricRepo{pool: pool}
}

// Create records one metric sample.
func (r *MetricRepo) Create(ctx context.Context, m *model.Metric) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO metrics (run_id, stage, latency_ms, tokens_in, tokens_out, cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.RunID, m.Stage, m.LatencyMs, m.TokensIn, m.TokensOut, m.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("repository.MetricRepo.Create: %w", err)
	}
	return nil
}

// ListByDocument returns every metric sample recorded across a
// document's runs, for the per-document metrics endpoint.
func (r *MetricRepo) ListByDocument(ctx context.Context, documentID int64) ([]model.Metric, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.run_id, m.stage, m.latency_ms, m.tokens_in, m.tokens_out, m.cost_usd, m.created_at
		FROM metrics m
		JOIN pipeline_runs pr ON pr.id = m.run_id
		WHERE pr.document_id = $1
		ORDER BY m.created_at ASC`, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.MetricRepo.ListByDocument: %w", err)
	}
	defer rows.Close()

	var out []model.Metric
	for rows.Next() {
		var m model.Metric
		if err := rows.Scan(&m.ID, &m.RunID, &m.Stage, &m.LatencyMs, &m.TokensIn, &m.TokensOut, &m.CostUSD, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.MetricRepo.ListByDocument: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// SumCostByDocument returns the total modeled cost across every metric
// sample recorded for a document's runs, for the cost-accounting
// invariant and audit reporting.
func (r *MetricRepo) SumCostByDocument(ctx context.Context, documentID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(m.cost_usd), 0)
		FROM metrics m
		JOIN pipeline_runs pr ON pr.id = m.run_id
		WHERE pr.document_id = $1`, documentID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("repository.MetricRepo.SumCostByDocument: %w", err)
	}
	return total, nil
}
