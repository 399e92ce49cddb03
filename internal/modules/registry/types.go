// Package registry keeps the silver-layer repository registry in step with
// the catalogue. Synced rows carry a link back to their catalogue record;
// rows registered by hand (no link) are never touched by synchronisation,
// and no row is ever deleted so ingested history stays attached.
package registry

import "time"

// RepoInfo is one row of the silver repositories table. EstateID and
// CatalogueRepositoryID are nil for ad-hoc rows that were registered
// outside any catalogue.
type RepoInfo struct {
	ID                    string     `json:"id"`
	Owner                 string     `json:"owner"`
	Name                  string     `json:"name"`
	Slug                  string     `json:"slug"`
	DefaultBranch         string     `json:"default_branch"`
	EstateID              *string    `json:"estate_id,omitempty"`
	CatalogueRepositoryID *string    `json:"catalogue_repository_id,omitempty"`
	IngestionEnabled      bool       `json:"ingestion_enabled"`
	DocumentationPaths    []string   `json:"documentation_paths,omitempty"`
	LastSyncedAt          *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// SyncResult summarises one synchronisation run for an estate
type SyncResult struct {
	EstateKey   string `json:"estate_key"`
	Created     int    `json:"created"`
	Updated     int    `json:"updated"`
	Deactivated int    `json:"deactivated"`
}

// ListOptions narrows and pages repository listings. A zero Limit means no
// limit. Negative values are rejected.
type ListOptions struct {
	EstateID *string
	Limit    int
	Offset   int
}
