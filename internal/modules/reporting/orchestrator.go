package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/modules/evidence"
	"github.com/wildside/ghillie/internal/modules/registry"
)

// Orchestrator defaults
const (
	DefaultWindowDays            = 7
	DefaultValidationMaxAttempts = 2
	DefaultModelTimeout          = 60 * time.Second
	DefaultMaxConcurrent         = 10
)

// Config tunes the reporting orchestrator. Zero values fall back to the
// defaults above.
type Config struct {
	WindowDays            int
	ValidationMaxAttempts int
	ModelTimeout          time.Duration
	MaxConcurrent         int
}

func (c Config) withDefaults() Config {
	if c.WindowDays <= 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.ValidationMaxAttempts <= 0 {
		c.ValidationMaxAttempts = DefaultValidationMaxAttempts
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = DefaultModelTimeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	return c
}

// Orchestrator drives report generation for repositories: window
// computation, model invocation under the validation-retry budget,
// persistence, and best-effort sink writes. It is stateless per run.
type Orchestrator struct {
	goldDB    *database.DB
	reports   *ReportRepository
	coverage  *CoverageRepository
	reviews   *ReviewRepository
	builder   *evidence.RepoBundleBuilder
	repos     *registry.RepoRepository
	model     StatusModel
	sink      domain.ReportSink
	publisher domain.EventPublisher
	cfg       Config
	log       zerolog.Logger
}

// NewOrchestrator creates a reporting orchestrator. Sink and publisher may
// be nil; reports are then persisted without rendering or events.
func NewOrchestrator(
	goldDB *database.DB,
	reports *ReportRepository,
	coverage *CoverageRepository,
	reviews *ReviewRepository,
	builder *evidence.RepoBundleBuilder,
	repos *registry.RepoRepository,
	model StatusModel,
	sink domain.ReportSink,
	publisher domain.EventPublisher,
	cfg Config,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		goldDB:    goldDB,
		reports:   reports,
		coverage:  coverage,
		reviews:   reviews,
		builder:   builder,
		repos:     repos,
		model:     model,
		sink:      sink,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		log:       log.With().Str("module", "reporting").Logger(),
	}
}

// RunForRepository computes the next window, builds the evidence bundle,
// and generates a report. Returns (nil, nil) when the window holds no
// events: empty windows produce no rows of any kind.
func (o *Orchestrator) RunForRepository(ctx context.Context, repositoryID string, asOf *time.Time) (*Report, error) {
	window, err := o.ComputeNextWindow(ctx, repositoryID, asOf)
	if err != nil {
		return nil, err
	}

	bundle, err := o.builder.BuildBundle(ctx, repositoryID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	if bundle.TotalEventCount() == 0 {
		o.log.Info().
			Str("repository_id", repositoryID).
			Time("window_start", window.Start).
			Time("window_end", window.End).
			Msg("No events in window, skipping report")
		return nil, nil
	}

	return o.GenerateReport(ctx, repositoryID, window.Start, window.End, bundle)
}

// GenerateReport produces and persists one repository-scope report for the
// window [start, end). A nil bundle is built on demand. On validation
// exhaustion a pending review marker is upserted and a
// *ValidationFailedError returned; no report row is written.
func (o *Orchestrator) GenerateReport(ctx context.Context, repositoryID string, start, end time.Time, bundle *evidence.RepositoryEvidenceBundle) (*Report, error) {
	if !end.After(start) {
		return nil, &InvalidWindowError{Start: start, End: end}
	}

	if bundle == nil {
		var err error
		bundle, err = o.builder.BuildBundle(ctx, repositoryID, start, end)
		if err != nil {
			return nil, err
		}
	}

	var (
		accepted domain.StatusResult
		latency  int64
		metrics  *domain.InvocationMetrics
		issues   []string
		valid    bool
	)
	for attempt := 1; attempt <= o.cfg.ValidationMaxAttempts; attempt++ {
		result, elapsed, err := o.invokeModel(ctx, bundle)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			issues = []string{fmt.Sprintf("model invocation failed: %v", err)}
			o.log.Warn().Err(err).
				Str("repository_id", repositoryID).
				Int("attempt", attempt).
				Msg("Status model invocation failed")
			continue
		}
		if problems := result.Validate(); len(problems) > 0 {
			issues = problems
			o.log.Warn().
				Str("repository_id", repositoryID).
				Int("attempt", attempt).
				Strs("issues", problems).
				Msg("Status result failed validation")
			continue
		}
		accepted, latency, valid = result, elapsed, true
		if mp, ok := o.model.(MetricsProvider); ok {
			metrics = mp.LastInvocationMetrics()
		}
		break
	}

	if !valid {
		return nil, o.recordValidationFailure(ctx, repositoryID, start, end, issues)
	}

	report := &Report{
		ID:             uuid.NewString(),
		Scope:          ScopeRepository,
		RepositoryID:   &repositoryID,
		EstateID:       bundle.Repository.EstateID,
		WindowStart:    start,
		WindowEnd:      end,
		GeneratedAt:    time.Now().UTC(),
		Model:          modelIdentifier(o.model),
		HumanText:      accepted.Summary,
		MachineSummary: accepted,
		LatencyMS:      &latency,
	}
	if metrics != nil {
		prompt, completion, total := metrics.PromptTokens, metrics.CompletionTokens, metrics.TotalTokens
		report.PromptTokens, report.CompletionTokens, report.TotalTokens = &prompt, &completion, &total
	}

	err := database.WithTransactionContext(ctx, o.goldDB.Conn(), func(tx *sql.Tx) error {
		if err := o.reports.CreateTx(ctx, tx, report); err != nil {
			return err
		}
		return o.coverage.InsertManyTx(ctx, tx, report.ID, bundle.EventFactIDs)
	})
	if err != nil {
		return nil, err
	}

	stored, err := o.reports.GetByID(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("report %s missing after insert", report.ID)
	}

	o.log.Info().
		Str("repository_id", repositoryID).
		Str("report_id", stored.ID).
		Str("status", string(stored.MachineSummary.Status)).
		Int("events_covered", len(bundle.EventFactIDs)).
		Msg("Report generated")

	o.publishGenerated(ctx, stored, bundle)
	o.writeToSink(ctx, stored, bundle)
	return stored, nil
}

// invokeModel calls the status model under the configured timeout,
// measuring wall-clock latency around the call
func (o *Orchestrator) invokeModel(ctx context.Context, bundle *evidence.RepositoryEvidenceBundle) (domain.StatusResult, int64, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	defer cancel()

	started := time.Now()
	result, err := o.model.SummarizeRepository(callCtx, bundle)
	return result, time.Since(started).Milliseconds(), err
}

// recordValidationFailure upserts the pending review marker for the window
// and wraps the final attempt's issues into the returned error
func (o *Orchestrator) recordValidationFailure(ctx context.Context, repositoryID string, start, end time.Time, issues []string) error {
	now := time.Now().UTC()
	var reviewID string
	err := database.WithTransactionContext(ctx, o.goldDB.Conn(), func(tx *sql.Tx) error {
		id, err := o.reviews.UpsertPendingTx(ctx, tx, repositoryID, start, end,
			o.cfg.ValidationMaxAttempts, issues, now)
		if err != nil {
			return err
		}
		reviewID = id
		return nil
	})
	if err != nil {
		return err
	}

	o.log.Warn().
		Str("repository_id", repositoryID).
		Str("review_id", reviewID).
		Strs("issues", issues).
		Msg("Report validation exhausted, review marker recorded")

	o.publishReviewCreated(ctx, repositoryID, reviewID, start, end)
	return &ValidationFailedError{
		Issues:   issues,
		Attempts: o.cfg.ValidationMaxAttempts,
		ReviewID: reviewID,
	}
}

func (o *Orchestrator) publishGenerated(ctx context.Context, report *Report, bundle *evidence.RepositoryEvidenceBundle) {
	if o.publisher == nil {
		return
	}
	data := &domain.ReportGeneratedData{
		ReportID:     report.ID,
		RepositoryID: bundle.Repository.ID,
		Owner:        bundle.Repository.Owner,
		Name:         bundle.Repository.Name,
		WindowStart:  report.WindowStart.UTC().Format(time.RFC3339),
		WindowEnd:    report.WindowEnd.UTC().Format(time.RFC3339),
		Status:       string(report.MachineSummary.Status),
	}
	if err := o.publisher.Publish(ctx, data); err != nil {
		o.log.Warn().Err(err).Msg("Failed to publish report.generated event")
	}
}

func (o *Orchestrator) publishReviewCreated(ctx context.Context, repositoryID, reviewID string, start, end time.Time) {
	if o.publisher == nil {
		return
	}
	data := &domain.ReportReviewCreatedData{
		ReviewID:     reviewID,
		RepositoryID: repositoryID,
		WindowStart:  start.UTC().Format(time.RFC3339),
		WindowEnd:    end.UTC().Format(time.RFC3339),
		AttemptCount: o.cfg.ValidationMaxAttempts,
	}
	if err := o.publisher.Publish(ctx, data); err != nil {
		o.log.Warn().Err(err).Msg("Failed to publish report.review_created event")
	}
}

// writeToSink renders the report and hands it to the configured sink. The
// report row is already durable; sink failures are logged and swallowed.
func (o *Orchestrator) writeToSink(ctx context.Context, report *Report, bundle *evidence.RepositoryEvidenceBundle) {
	if o.sink == nil {
		return
	}
	repo := bundle.Repository
	markdown := RenderRepositoryReport(report, repo.Owner, repo.Name)
	meta := domain.ReportMeta{
		Owner:     repo.Owner,
		Name:      repo.Name,
		ReportID:  report.ID,
		WindowEnd: report.WindowEnd,
	}
	if err := o.sink.WriteReport(ctx, markdown, meta); err != nil {
		o.log.Warn().Err(err).
			Str("report_id", report.ID).
			Str("slug", repo.Slug).
			Msg("Report sink write failed")
	}
}
