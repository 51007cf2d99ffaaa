package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"gestor/internal/platform/querier"
)

const JobPayslipPDF = "payslip_pdf"

// Service runs deferred work off the request path. Only derived artifacts
// (payslip PDFs) go through here; fiscal state is always written through
// synchronously.
type Service struct {
	DB    querier.Querier
	queue chan job
}

type job struct {
	Type string
	Ref  string
	Run  func(context.Context) (any, error)
}

func New(db querier.Querier) *Service {
	return &Service{
		DB:    db,
		queue: make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

func (s *Service) Enqueue(jobType, ref string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Ref: ref, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType, "ref", ref)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, ref string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Ref: ref, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "ref", j.Ref, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, ref, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, j.Type, j.Ref, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}
