package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wildside/ghillie/internal/domain"
)

func TestRenderRepositoryReportFullLayout(t *testing.T) {
	report := &Report{
		ID:          "3f2c8e1a-0000-4000-8000-000000000001",
		Scope:       ScopeRepository,
		WindowStart: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 7, 8, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Date(2026, 7, 8, 9, 30, 42, 0, time.UTC),
		Model:       "stub",
		MachineSummary: domain.StatusResult{
			Status:     domain.StatusAtRisk,
			Summary:    "Seat maps landed but the booking race is still open.",
			Highlights: []string{"Seat maps shipped", "Webhook retries stabilised"},
			Risks:      []string{"Double booking race unresolved"},
			NextSteps:  []string{"Land the race fix"},
		},
	}

	expected := `# wildside/booking-engine — Status report (2026-07-01 to 2026-07-08)

**Status:** At Risk

## Summary

Seat maps landed but the booking race is still open.

## Highlights

- Seat maps shipped
- Webhook retries stabilised

## Risks

- Double booking race unresolved

## Next steps

- Land the race fix

---
*Generated 2026-07-08 09:30 UTC · model stub · window 2026-07-01 to 2026-07-08 · report 3f2c8e1a-0000-4000-8000-000000000001*
`
	assert.Equal(t, expected, RenderRepositoryReport(report, "wildside", "booking-engine"))
}

func TestRenderRepositoryReportElidesEmptySections(t *testing.T) {
	report := &Report{
		ID:          "11111111-1111-4111-8111-111111111111",
		Scope:       ScopeRepository,
		WindowStart: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 7, 8, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Date(2026, 7, 8, 0, 0, 0, 0, time.UTC),
		Model:       "stub",
	}

	expected := `# wildside/insights-ui — Status report (2026-07-01 to 2026-07-08)

**Status:** Unknown

---
*Generated 2026-07-08 00:00 UTC · model stub · window 2026-07-01 to 2026-07-08 · report 11111111-1111-4111-8111-111111111111*
`
	markdown := RenderRepositoryReport(report, "wildside", "insights-ui")
	assert.Equal(t, expected, markdown)
	assert.NotContains(t, markdown, "## Summary")
	assert.NotContains(t, markdown, "## Highlights")
	assert.NotContains(t, markdown, "## Risks")
	assert.NotContains(t, markdown, "## Next steps")
}

func TestRenderRepositoryReportIsDeterministic(t *testing.T) {
	report := &Report{
		ID:          "22222222-2222-4222-8222-222222222222",
		Scope:       ScopeRepository,
		WindowStart: time.Date(2026, 6, 24, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Date(2026, 7, 1, 8, 15, 0, 0, time.UTC),
		Model:       "scripted",
		MachineSummary: domain.StatusResult{
			Status:  domain.StatusBlocked,
			Summary: "Waiting on the identity-service key rotation.",
			Risks:   []string{"Release frozen until keys rotate"},
		},
	}

	first := RenderRepositoryReport(report, "wildside", "api-gateway")
	second := RenderRepositoryReport(report, "wildside", "api-gateway")
	assert.Equal(t, first, second)
	assert.Contains(t, first, "**Status:** Blocked")
}
