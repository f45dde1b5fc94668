package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/config"
	"github.com/fraud-watch/pkg/db"
	"github.com/fraud-watch/pkg/extractor"
	"github.com/fraud-watch/pkg/metrics"
	"github.com/fraud-watch/pkg/selection"
)

var (
	ErrNoSelection = errors.New("no monitored address selected")
	ErrNoResult    = errors.New("backend returned neither a download url nor a job id")
)

// Report outcomes as recorded in metrics.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeQueued     = "queued"
	OutcomeFailed     = "failed"
)

type Backend interface {
	MonthlyReport(ctx context.Context, chain config.Chain, address string, months int) (*api.MonthlyReport, error)
	QuickStats(ctx context.Context, chain config.Chain, address string) (*api.QuickStats, error)
	ReportTemplates(ctx context.Context) ([]api.ReportTemplate, error)
	GenerateReport(ctx context.Context, req api.GenerateReportRequest) (*api.GenerateReportResponse, error)
	DownloadReport(ctx context.Context, id string) ([]byte, error)
	Fetch(ctx context.Context, link string) ([]byte, error)
}

// SelectionSource yields the currently monitored address.
type SelectionSource interface {
	Current() (selection.Selection, bool, error)
}

type JobStore interface {
	InsertReportJob(j db.ReportJob) (int64, error)
	MarkReportJobDownloaded(id int64, localPath string) error
	ListReportJobs(limit int) ([]db.ReportJob, error)
}

type Service struct {
	backend     Backend
	selection   SelectionSource
	jobs        JobStore
	downloadDir string
	reportType  string
	format      string
	metrics     *metrics.Metrics
}

func NewService(backend Backend, sel SelectionSource, jobs JobStore, cfg *config.Config, m *metrics.Metrics) *Service {
	return &Service{
		backend:     backend,
		selection:   sel,
		jobs:        jobs,
		downloadDir: cfg.DownloadDir,
		reportType:  cfg.ReportType,
		format:      cfg.ReportFormat,
		metrics:     m,
	}
}

// Outcome describes what happened to one generation request. Exactly one of
// LocalPath and JobID is set.
type Outcome struct {
	Job       db.ReportJob `json:"job"`
	LocalPath string       `json:"local_path,omitempty"`
	JobID     string       `json:"job_id,omitempty"`
}

// Generate submits a report request for the monitored address. Empty fields of
// req fall back to the current selection and the configured type and format.
// A direct download url is fetched into the download directory; a job id is
// only recorded, nothing polls for its completion.
func (s *Service) Generate(ctx context.Context, req api.GenerateReportRequest) (*Outcome, error) {
	if req.Address == "" {
		sel, ok, err := s.selection.Current()
		if err != nil {
			return nil, fmt.Errorf("read selection: %w", err)
		}
		if !ok {
			return nil, ErrNoSelection
		}
		req.Address, req.Chain = sel.Address, sel.Chain
	}
	if req.Chain == "" {
		req.Chain = extractor.ClassifyAddress(req.Address)
	}
	if req.ReportType == "" {
		req.ReportType = s.reportType
	}
	if req.Format == "" {
		req.Format = s.format
	}

	res, err := s.backend.GenerateReport(ctx, req)
	if err != nil {
		s.metrics.IncReport(OutcomeFailed)
		return nil, fmt.Errorf("generate %s report: %w", req.ReportType, err)
	}

	job := db.ReportJob{
		JobID:       res.JobID,
		ReportType:  req.ReportType,
		Format:      req.Format,
		Chain:       req.Chain,
		Address:     req.Address,
		DownloadURL: res.DownloadURL,
		RequestedAt: time.Now().UTC(),
	}

	switch {
	case res.DownloadURL != "":
		path, err := s.download(ctx, res.DownloadURL, job)
		if err != nil {
			s.metrics.IncReport(OutcomeFailed)
			return nil, err
		}
		job.LocalPath = path
		if job.ID, err = s.jobs.InsertReportJob(job); err != nil {
			return nil, err
		}
		if err := s.jobs.MarkReportJobDownloaded(job.ID, path); err != nil {
			return nil, err
		}
		s.metrics.IncReport(OutcomeDownloaded)
		log.Info().Str("address", extractor.Abbrev(req.Address)).Str("file", path).Msg("📄 report downloaded")
		return &Outcome{Job: job, LocalPath: path}, nil

	case res.JobID != "":
		if job.ID, err = s.jobs.InsertReportJob(job); err != nil {
			return nil, err
		}
		s.metrics.IncReport(OutcomeQueued)
		log.Info().Str("address", extractor.Abbrev(req.Address)).Str("job", res.JobID).Msg("report queued")
		return &Outcome{Job: job, JobID: res.JobID}, nil
	}

	s.metrics.IncReport(OutcomeFailed)
	return nil, ErrNoResult
}

func (s *Service) download(ctx context.Context, link string, job db.ReportJob) (string, error) {
	body, err := s.backend.Fetch(ctx, link)
	if err != nil {
		return "", fmt.Errorf("download report: %w", err)
	}
	return s.save(reportFileName(job), body)
}

func (s *Service) save(name string, body []byte) (string, error) {
	if err := os.MkdirAll(s.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(s.downloadDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func reportFileName(job db.ReportJob) string {
	addr := job.Address
	if len(addr) > 10 {
		addr = addr[:10]
	}
	name := fmt.Sprintf("%s_%s_%s_%s.%s", job.ReportType, job.Chain, addr,
		job.RequestedAt.Format("20060102-150405"), job.Format)
	return unsafeName.ReplaceAllString(name, "_")
}

func (s *Service) Templates(ctx context.Context) ([]api.ReportTemplate, error) {
	return s.backend.ReportTemplates(ctx)
}

// DownloadTemplate saves a template's latest report. The template's own link
// wins; otherwise the per-id download endpoint is used.
func (s *Service) DownloadTemplate(ctx context.Context, tpl api.ReportTemplate) (string, error) {
	var (
		body []byte
		err  error
	)
	if tpl.DownloadURL != "" {
		body, err = s.backend.Fetch(ctx, tpl.DownloadURL)
	} else {
		body, err = s.backend.DownloadReport(ctx, tpl.ID)
	}
	if err != nil {
		return "", fmt.Errorf("download template %s: %w", tpl.ID, err)
	}
	name := unsafeName.ReplaceAllString(fmt.Sprintf("template_%s_%s", tpl.ID, time.Now().UTC().Format("20060102-150405")), "_")
	return s.save(name, body)
}

func (s *Service) current() (selection.Selection, error) {
	sel, ok, err := s.selection.Current()
	if err != nil {
		return selection.Selection{}, fmt.Errorf("read selection: %w", err)
	}
	if !ok {
		return selection.Selection{}, ErrNoSelection
	}
	return sel, nil
}

func (s *Service) Monthly(ctx context.Context, months int) (*api.MonthlyReport, error) {
	sel, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.backend.MonthlyReport(ctx, sel.Chain, sel.Address, months)
}

func (s *Service) QuickStats(ctx context.Context) (*api.QuickStats, error) {
	sel, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.backend.QuickStats(ctx, sel.Chain, sel.Address)
}

func (s *Service) Jobs(limit int) ([]db.ReportJob, error) {
	return s.jobs.ListReportJobs(limit)
}
