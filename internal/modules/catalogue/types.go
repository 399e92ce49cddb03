// Package catalogue persists validated catalogue documents into the bronze
// database and reconciles re-imports against the stored state. Stores follow
// the repository pattern: each table gets a narrow struct bound to the
// catalogue database, and mutation methods accept an explicit transaction so
// the importer can drive a whole reconciliation atomically.
package catalogue

import "time"

// Estate is a tenancy boundary. Every project, component and import record
// hangs off exactly one estate; repository records are shared across estates.
type Estate struct {
	ID        string
	Key       string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectRecord is a stored project within an estate. Noise and
// StatusPreferences hold the serialised JSON forms of the catalogue
// document's preference blocks so re-imports can diff them cheaply.
type ProjectRecord struct {
	ID                 string
	EstateID           string
	Key                string
	Name               string
	Description        string
	Programme          string
	Noise              string
	StatusPreferences  string
	DocumentationPaths []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ComponentRecord is a stored component. RepositoryID is nil for components
// with no repository block (planned work, external dependencies). Position
// preserves the document order within the owning project.
type ComponentRecord struct {
	ID           string
	ProjectID    string
	Key          string
	Name         string
	Type         string
	Lifecycle    string
	Description  string
	RepositoryID *string
	Notes        []string
	Position     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ComponentEdgeRecord is a stored dependency edge between two components of
// the same estate, unique per (from, to, relationship).
type ComponentEdgeRecord struct {
	ID              string
	FromComponentID string
	ToComponentID   string
	Relationship    string
	Kind            string
	Rationale       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RepositoryRecord is a stored git repository reference, shared across
// estates and unique by slug (owner/name lowercased).
type RepositoryRecord struct {
	ID                 string
	Owner              string
	Name               string
	Slug               string
	DefaultBranch      string
	DocumentationPaths []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CatalogueImportRecord marks a catalogue commit as imported for an estate.
// The (EstateID, CommitSHA) pair is unique, which is what makes re-imports
// of the same commit idempotent even under concurrent importers.
type CatalogueImportRecord struct {
	ID         string
	EstateID   string
	CommitSHA  string
	ImportedAt time.Time
}
