package domain

// EventType identifies a class of domain event on the broker
type EventType string

const (
	CatalogueImported   EventType = "catalogue.imported"
	RegistrySynced      EventType = "registry.synced"
	ReportGenerated     EventType = "report.generated"
	ReportReviewCreated EventType = "report.review_created"
)

// EventData is the interface that all event payload types must implement
// This allows for type-safe event payloads while maintaining flexibility
type EventData interface {
	// EventType returns the event type this payload is associated with
	EventType() EventType
}

// CatalogueImportedData contains data for CatalogueImported events.
// The counters are summed across projects, components, repositories,
// and edges.
type CatalogueImportedData struct {
	EstateKey string `json:"estate_key" msgpack:"estate_key"`
	CommitSHA string `json:"commit_sha,omitempty" msgpack:"commit_sha"`
	Skipped   bool   `json:"skipped" msgpack:"skipped"`
	Created   int    `json:"created" msgpack:"created"`
	Updated   int    `json:"updated" msgpack:"updated"`
	Deleted   int    `json:"deleted" msgpack:"deleted"`
}

// EventType returns the event type for CatalogueImportedData
func (d *CatalogueImportedData) EventType() EventType {
	return CatalogueImported
}

// RegistrySyncedData contains data for RegistrySynced events
type RegistrySyncedData struct {
	EstateKey   string `json:"estate_key" msgpack:"estate_key"`
	Created     int    `json:"created" msgpack:"created"`
	Updated     int    `json:"updated" msgpack:"updated"`
	Deactivated int    `json:"deactivated" msgpack:"deactivated"`
}

// EventType returns the event type for RegistrySyncedData
func (d *RegistrySyncedData) EventType() EventType {
	return RegistrySynced
}

// ReportGeneratedData contains data for ReportGenerated events
type ReportGeneratedData struct {
	ReportID     string `json:"report_id" msgpack:"report_id"`
	RepositoryID string `json:"repository_id" msgpack:"repository_id"`
	Owner        string `json:"owner" msgpack:"owner"`
	Name         string `json:"name" msgpack:"name"`
	WindowStart  string `json:"window_start" msgpack:"window_start"`
	WindowEnd    string `json:"window_end" msgpack:"window_end"`
	Status       string `json:"status" msgpack:"status"`
}

// EventType returns the event type for ReportGeneratedData
func (d *ReportGeneratedData) EventType() EventType {
	return ReportGenerated
}

// ReportReviewCreatedData contains data for ReportReviewCreated events
type ReportReviewCreatedData struct {
	ReviewID     string `json:"review_id" msgpack:"review_id"`
	RepositoryID string `json:"repository_id" msgpack:"repository_id"`
	WindowStart  string `json:"window_start" msgpack:"window_start"`
	WindowEnd    string `json:"window_end" msgpack:"window_end"`
	AttemptCount int    `json:"attempt_count" msgpack:"attempt_count"`
}

// EventType returns the event type for ReportReviewCreatedData
func (d *ReportReviewCreatedData) EventType() EventType {
	return ReportReviewCreated
}
