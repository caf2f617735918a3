package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
)

// ReportRepository aggregates lifecycle history for reporting.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// PlacementsByRecruiter counts submissions and placements per creating recruiter.
func (r *ReportRepository) PlacementsByRecruiter(ctx context.Context, filter models.ReportFilter) ([]models.RecruiterPlacementRow, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT s.created_by AS recruiter,
       COUNT(*) AS submissions,
       COUNT(*) FILTER (WHERE s.internal_status = 'placed') AS placements
FROM submissions s JOIN jobs j ON j.code = s.job_code`)
	conditions := reportConditions(filter, &args, "s.created_at")
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" GROUP BY s.created_by ORDER BY s.created_by")

	var rows []models.RecruiterPlacementRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("placements by recruiter: %w", err)
	}
	return rows, nil
}

// TimeToFill returns per-job placement timing for jobs with at least one placement.
func (r *ReportRepository) TimeToFill(ctx context.Context, filter models.ReportFilter) ([]models.TimeToFillRow, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT j.code AS job_code, j.client_code, j.created_at AS opened_at,
       MAX(s.placed_at) AS last_placed_at, COUNT(s.placed_at) AS placements, j.openings_total
FROM jobs j JOIN submissions s ON s.job_code = j.code AND s.internal_status = 'placed'`)
	conditions := reportConditions(filter, &args, "s.placed_at")
	conditions = append(conditions, "j.deleted_at IS NULL")
	builder.WriteString(" WHERE ")
	builder.WriteString(strings.Join(conditions, " AND "))
	builder.WriteString(" GROUP BY j.code, j.client_code, j.created_at, j.openings_total ORDER BY j.code")

	var rows []models.TimeToFillRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("time to fill: %w", err)
	}
	return rows, nil
}

func reportConditions(filter models.ReportFilter, args *[]interface{}, timeColumn string) []string {
	conditions := make([]string, 0, 3)
	if filter.ClientCode != "" {
		*args = append(*args, filter.ClientCode)
		conditions = append(conditions, fmt.Sprintf("j.client_code = $%d", len(*args)))
	}
	if filter.From != nil {
		*args = append(*args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", timeColumn, len(*args)))
	}
	if filter.To != nil {
		*args = append(*args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("%s < $%d", timeColumn, len(*args)))
	}
	return conditions
}
