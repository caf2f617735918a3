package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
	"github.com/noah-isme/recruit-pipeline-api/pkg/export"
)

// Report export formats.
const (
	ReportFormatJSON = "json"
	ReportFormatCSV  = "csv"
	ReportFormatPDF  = "pdf"
)

type reportStore interface {
	PlacementsByRecruiter(ctx context.Context, filter models.ReportFilter) ([]models.RecruiterPlacementRow, error)
	TimeToFill(ctx context.Context, filter models.ReportFilter) ([]models.TimeToFillRow, error)
}

// ReportFile is a rendered export ready to be sent as an attachment.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService derives placement reports from lifecycle history.
type ReportService struct {
	repo   reportStore
	cache  *ReportCache
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewReportService constructs the report service. cache may be nil.
func NewReportService(repo reportStore, cache *ReportCache, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:   repo,
		cache:  cache,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// Placements returns submissions, placements and placement rate per recruiter.
// The boolean reports whether the data came from cache.
func (s *ReportService) Placements(ctx context.Context, filter models.ReportFilter) ([]models.RecruiterPlacement, bool, error) {
	return remember(ctx, s.cache, reportCacheKey("placements", filter), func(ctx context.Context) ([]models.RecruiterPlacement, error) {
		rows, err := s.repo.PlacementsByRecruiter(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build placement report")
		}
		report := make([]models.RecruiterPlacement, 0, len(rows))
		for _, row := range rows {
			var rate float64
			if row.Submissions > 0 {
				rate = round(float64(row.Placements)/float64(row.Submissions), 4)
			}
			report = append(report, models.RecruiterPlacement{
				Recruiter:     row.Recruiter,
				Submissions:   row.Submissions,
				Placements:    row.Placements,
				PlacementRate: rate,
			})
		}
		return report, nil
	})
}

// TimeToFill returns, per job, the days between opening and the latest placement.
func (s *ReportService) TimeToFill(ctx context.Context, filter models.ReportFilter) ([]models.TimeToFill, bool, error) {
	return remember(ctx, s.cache, reportCacheKey("time-to-fill", filter), func(ctx context.Context) ([]models.TimeToFill, error) {
		rows, err := s.repo.TimeToFill(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build time-to-fill report")
		}
		report := make([]models.TimeToFill, 0, len(rows))
		for _, row := range rows {
			item := models.TimeToFill{
				JobCode:       row.JobCode,
				ClientCode:    row.ClientCode,
				OpenedAt:      row.OpenedAt,
				LastPlacedAt:  row.LastPlacedAt,
				Placements:    row.Placements,
				OpeningsTotal: row.OpeningsTotal,
			}
			if row.LastPlacedAt != nil && !row.LastPlacedAt.Before(row.OpenedAt) {
				days := round(row.LastPlacedAt.Sub(row.OpenedAt).Hours()/24, 2)
				item.DaysToFill = &days
			}
			report = append(report, item)
		}
		return report, nil
	})
}

// ExportPlacements renders the placement report as CSV or PDF.
func (s *ReportService) ExportPlacements(ctx context.Context, filter models.ReportFilter, format string) (*ReportFile, error) {
	report, _, err := s.Placements(ctx, filter)
	if err != nil {
		return nil, err
	}
	table := export.NewTable("Recruiter", "Submissions", "Placements", "Placement Rate").
		Numeric("Submissions", "Placements", "Placement Rate")
	for _, row := range report {
		table.Append(
			row.Recruiter,
			strconv.Itoa(row.Submissions),
			strconv.Itoa(row.Placements),
			strconv.FormatFloat(row.PlacementRate*100, 'f', 1, 64)+"%",
		)
	}
	return s.render(table, "placements", "Placement rate by recruiter", filter, format)
}

// ExportTimeToFill renders the time-to-fill report as CSV or PDF.
func (s *ReportService) ExportTimeToFill(ctx context.Context, filter models.ReportFilter, format string) (*ReportFile, error) {
	report, _, err := s.TimeToFill(ctx, filter)
	if err != nil {
		return nil, err
	}
	table := export.NewTable("Job", "Client", "Opened", "Last Placement", "Placements", "Openings", "Days To Fill").
		Numeric("Placements", "Openings", "Days To Fill")
	for _, row := range report {
		var lastPlaced, days string
		if row.LastPlacedAt != nil {
			lastPlaced = row.LastPlacedAt.Format("2006-01-02")
		}
		if row.DaysToFill != nil {
			days = strconv.FormatFloat(*row.DaysToFill, 'f', 1, 64)
		}
		table.Append(
			row.JobCode,
			row.ClientCode,
			row.OpenedAt.Format("2006-01-02"),
			lastPlaced,
			strconv.Itoa(row.Placements),
			strconv.Itoa(row.OpeningsTotal),
			days,
		)
	}
	return s.render(table, "time-to-fill", "Time to fill by job", filter, format)
}

func (s *ReportService) render(table *export.Table, name, title string, filter models.ReportFilter, format string) (*ReportFile, error) {
	now := time.Now().UTC()
	stamp := now.Format("20060102")
	switch strings.ToLower(format) {
	case ReportFormatCSV:
		data, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ReportFile{Filename: fmt.Sprintf("%s-%s.csv", name, stamp), ContentType: "text/csv", Data: data}, nil
	case ReportFormatPDF:
		data, err := s.pdf.Render(table, export.Document{Title: title, Subtitle: describeFilter(filter), GeneratedAt: now})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ReportFile{Filename: fmt.Sprintf("%s-%s.pdf", name, stamp), ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func describeFilter(filter models.ReportFilter) string {
	parts := []string{"All clients"}
	if filter.ClientCode != "" {
		parts[0] = "Client " + filter.ClientCode
	}
	if filter.From != nil {
		parts = append(parts, "from "+filter.From.Format("2006-01-02"))
	}
	if filter.To != nil {
		parts = append(parts, "until "+filter.To.Format("2006-01-02"))
	}
	return strings.Join(parts, ", ")
}

func round(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
