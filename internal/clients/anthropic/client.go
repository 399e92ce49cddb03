// Package anthropic adapts the Anthropic Messages API into the reporting
// status-model port. The adapter builds a prompt from an evidence bundle,
// demands a strict JSON reply, and surfaces token usage for persistence.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/modules/evidence"
)

const (
	// DefaultModel is the pinned model for status summarisation
	DefaultModel = "claude-3-5-haiku-20241022"

	maxTokens      = 1024
	maxRetries     = 2
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when no API key is available
var ErrAPIKeyRequired = errors.New("API key required")

// StatusClient talks to the Anthropic API on behalf of the reporting
// orchestrator. Safe for concurrent use.
type StatusClient struct {
	client         sdk.Client
	model          sdk.Model
	promptTemplate *template.Template
	maxRetries     int
	initialBackoff time.Duration
	log            zerolog.Logger

	mu      sync.Mutex
	metrics *domain.InvocationMetrics
}

// NewStatusClient creates a status-model client. Env var ANTHROPIC_API_KEY
// takes precedence over the explicit key; an empty model pins DefaultModel.
func NewStatusClient(apiKey, model string, log zerolog.Logger) (*StatusClient, error) {
	envKey := os.Getenv("ANTHROPIC_API_KEY")
	if envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or provide via config", ErrAPIKeyRequired)
	}
	if model == "" {
		model = DefaultModel
	}

	tmpl, err := template.New("status").Parse(statusPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status prompt template: %w", err)
	}

	return &StatusClient{
		client:         sdk.NewClient(option.WithAPIKey(apiKey)),
		model:          sdk.Model(model),
		promptTemplate: tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		log:            log.With().Str("client", "anthropic").Logger(),
	}, nil
}

// ModelID identifies reports generated through this client
func (c *StatusClient) ModelID() string {
	return string(c.model)
}

// LastInvocationMetrics returns token usage from the most recent call, or
// nil before the first one
func (c *StatusClient) LastInvocationMetrics() *domain.InvocationMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metrics == nil {
		return nil
	}
	copied := *c.metrics
	return &copied
}

// SummarizeRepository asks the model for a status result over the bundle.
// The reply is parsed, never coerced: an out-of-vocabulary status comes
// back as-is so the caller's validation can reject it.
func (c *StatusClient) SummarizeRepository(ctx context.Context, bundle *evidence.RepositoryEvidenceBundle) (domain.StatusResult, error) {
	prompt, err := c.renderPrompt(bundle)
	if err != nil {
		return domain.StatusResult{}, fmt.Errorf("failed to render status prompt: %w", err)
	}

	text, usage, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return domain.StatusResult{}, err
	}

	c.mu.Lock()
	c.metrics = usage
	c.mu.Unlock()

	result, err := parseStatusResult(text)
	if err != nil {
		c.log.Warn().Err(err).Str("slug", bundle.Repository.Slug).Msg("Model reply was not valid status JSON")
		return domain.StatusResult{}, err
	}
	return result, nil
}

func (c *StatusClient) callWithRetry(ctx context.Context, prompt string) (string, *domain.InvocationMetrics, error) {
	params := sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", nil, fmt.Errorf("unexpected response format: no content blocks")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", nil, fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			usage := &domain.InvocationMetrics{
				PromptTokens:     int(message.Usage.InputTokens),
				CompletionTokens: int(message.Usage.OutputTokens),
				TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
			}
			return content.Text, usage, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		if !isRetryable(err) {
			return "", nil, fmt.Errorf("non-retryable error: %w", err)
		}
	}

	return "", nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// parseStatusResult decodes the model's JSON reply, tolerating a fenced
// code block around it
func parseStatusResult(text string) (domain.StatusResult, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var result domain.StatusResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return domain.StatusResult{}, fmt.Errorf("failed to parse status JSON: %w", err)
	}
	return result, nil
}

type promptData struct {
	Slug        string
	WindowStart string
	WindowEnd   string
	TotalEvents int
	CommitCount int
	PRCount     int
	IssueCount  int
	DocCount    int
	MeanPerDay  string
	ActiveDays  int
	PeakDay     string
	PeakCommits int
	WorkTypes   []evidence.WorkTypeGrouping
	DocChanges  []evidence.DocumentationChange
	Previous    []previousLine
}

type previousLine struct {
	WindowEnd string
	Status    string
	Summary   string
}

func (c *StatusClient) renderPrompt(bundle *evidence.RepositoryEvidenceBundle) (string, error) {
	data := promptData{
		Slug:        bundle.Repository.Slug,
		WindowStart: bundle.WindowStart.UTC().Format("2006-01-02"),
		WindowEnd:   bundle.WindowEnd.UTC().Format("2006-01-02"),
		TotalEvents: bundle.TotalEventCount(),
		CommitCount: len(bundle.Commits),
		PRCount:     len(bundle.PullRequests),
		IssueCount:  len(bundle.Issues),
		DocCount:    len(bundle.DocumentationChanges),
		MeanPerDay:  fmt.Sprintf("%.2f", bundle.Activity.CommitsPerDayMean),
		ActiveDays:  bundle.Activity.ActiveDays,
		PeakDay:     bundle.Activity.PeakDay,
		PeakCommits: bundle.Activity.PeakCommits,
		WorkTypes:   bundle.WorkTypes,
		DocChanges:  bundle.DocumentationChanges,
	}
	for _, prev := range bundle.PreviousReports {
		data.Previous = append(data.Previous, previousLine{
			WindowEnd: prev.WindowEnd.UTC().Format("2006-01-02"),
			Status:    string(prev.Status),
			Summary:   prev.Summary,
		})
	}

	var b strings.Builder
	if err := c.promptTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

const statusPromptTemplate = `You write engineering status reports. Given the evidence below, reply with a single JSON object and nothing else, in this exact shape:

{"status": "<on_track|at_risk|blocked|unknown>", "summary": "<2-4 sentences on what happened and where the work stands>", "highlights": ["<notable progress>"], "risks": ["<open risks, empty list if none>"], "next_steps": ["<likely next work, empty list if none>"]}

Base every claim on the evidence. Do not invent work that is not listed.

Repository: {{.Slug}}
Window: {{.WindowStart}} to {{.WindowEnd}} ({{.TotalEvents}} recorded events)
Totals: {{.CommitCount}} commits, {{.PRCount}} pull requests, {{.IssueCount}} issues, {{.DocCount}} documentation changes
Commit cadence: {{.MeanPerDay}} per day across {{.ActiveDays}} active days{{if .PeakDay}}, peaking at {{.PeakCommits}} on {{.PeakDay}}{{end}}
{{if .WorkTypes}}
Work breakdown:
{{range .WorkTypes}}- {{.WorkType}}: {{.Commits}} commits, {{.PullRequests}} pull requests, {{.Issues}} issues{{range .Samples}}
    "{{.}}"{{end}}
{{end}}{{end}}{{if .DocChanges}}
Documentation changes:
{{range .DocChanges}}- {{.Path}} ({{.ChangeType}}){{if .Summary}}: {{.Summary}}{{end}}
{{end}}{{end}}{{if .Previous}}
Previous reports, newest first:
{{range .Previous}}- {{.WindowEnd}} [{{.Status}}] {{.Summary}}
{{end}}{{end}}`
