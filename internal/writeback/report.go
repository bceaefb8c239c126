package writeback

import (
	"context"
	"time"

	"lingotool/internal/catalog"
)

// RunStatistics aggregates per-item outcomes of a run.
type RunStatistics struct {
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// RunReportResult is one item's line in a run report.
type RunReportResult struct {
	PatchItemID    string `json:"patch_item_id"`
	Status         string `json:"status"`
	RollbackStatus string `json:"rollback_status"`
}

// RunReport is the audit view of one apply run.
type RunReport struct {
	RunID       string            `json:"run_id"`
	PlanID      string            `json:"plan_id"`
	Status      string            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Statistics  RunStatistics     `json:"statistics"`
	Results     []RunReportResult `json:"results"`
}

// Report assembles the report for a recorded run.
func (e *Executor) Report(ctx context.Context, runID string) (*RunReport, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	results, err := e.store.ResultsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		RunID:       run.ID,
		PlanID:      run.PlanID,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Results:     make([]RunReportResult, 0, len(results)),
	}
	for _, result := range results {
		report.Statistics.Total++
		switch result.Status {
		case catalog.ResultSuccess:
			report.Statistics.Success++
		case catalog.ResultFailed, catalog.ResultConflict:
			report.Statistics.Failed++
		}
		report.Results = append(report.Results, RunReportResult{
			PatchItemID:    result.PatchItemID,
			Status:         string(result.Status),
			RollbackStatus: string(result.RollbackStatus),
		})
	}
	if report.Statistics.Total > 0 {
		report.Statistics.SuccessRate = float64(report.Statistics.Success) / float64(report.Statistics.Total)
	}
	return report, nil
}
