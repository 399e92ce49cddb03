package reporting

import (
	"context"
	"reflect"
	"strings"

	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/modules/evidence"
)

// StatusModel produces a status result from repository evidence. Adapters
// wrap whatever backs them (an LLM API, a heuristic, a test double); the
// orchestrator validates every result before trusting it.
type StatusModel interface {
	SummarizeRepository(ctx context.Context, bundle *evidence.RepositoryEvidenceBundle) (domain.StatusResult, error)
}

// ModelIdentifier is optionally implemented by models that know their own
// identifier. Reports persist it; absent the interface, the lowercased type
// name is used.
type ModelIdentifier interface {
	ModelID() string
}

// MetricsProvider is optionally implemented by models that track token
// usage for their most recent invocation
type MetricsProvider interface {
	LastInvocationMetrics() *domain.InvocationMetrics
}

// modelIdentifier resolves the identifier persisted with each report
func modelIdentifier(m StatusModel) string {
	if id, ok := m.(ModelIdentifier); ok {
		return id.ModelID()
	}
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}
