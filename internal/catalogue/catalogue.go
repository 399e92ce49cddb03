// Package catalogue defines the typed model of a declarative estate
// catalogue, its YAML loader, and the structural validator. A catalogue
// describes the projects, components, dependency edges, and source
// repositories of one estate; the importer projects a validated catalogue
// into the relational catalogue layer.
package catalogue

import "strings"

// ComponentType classifies what a component is
type ComponentType string

const (
	TypeService      ComponentType = "service"
	TypeUI           ComponentType = "ui"
	TypeLibrary      ComponentType = "library"
	TypeDataPipeline ComponentType = "data-pipeline"
	TypeJob          ComponentType = "job"
	TypeTooling      ComponentType = "tooling"
	TypeOther        ComponentType = "other"
)

// ComponentLifecycle tracks where a component is in its life
type ComponentLifecycle string

const (
	LifecyclePlanned    ComponentLifecycle = "planned"
	LifecycleActive     ComponentLifecycle = "active"
	LifecycleDeprecated ComponentLifecycle = "deprecated"
)

// EdgeRelationship is the semantic meaning of a dependency edge
type EdgeRelationship string

const (
	RelationshipDependsOn     EdgeRelationship = "depends_on"
	RelationshipBlockedBy     EdgeRelationship = "blocked_by"
	RelationshipEmitsEventsTo EdgeRelationship = "emits_events_to"
)

// EdgeKind describes the context in which the edge applies
type EdgeKind string

const (
	KindRuntime EdgeKind = "runtime"
	KindDev     EdgeKind = "dev"
	KindTest    EdgeKind = "test"
	KindOps     EdgeKind = "ops"
)

// Catalogue is the root of a parsed estate catalogue document
type Catalogue struct {
	Version    int         `yaml:"version"`
	Programmes []Programme `yaml:"programmes"`
	Projects   []Project   `yaml:"projects"`
}

// Programme is an optional display-only grouping of projects
type Programme struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Projects    []string `yaml:"projects"`
}

// Project is the unit of status reporting within an estate
type Project struct {
	Key                string             `yaml:"key"`
	Name               string             `yaml:"name"`
	Description        string             `yaml:"description"`
	Programme          string             `yaml:"programme"`
	Components         []Component        `yaml:"components"`
	Noise              *NoiseFilters      `yaml:"noise"`
	Status             *StatusPreferences `yaml:"status"`
	DocumentationPaths []string           `yaml:"documentation_paths"`
}

// Component is a unit of work inside a project, optionally mapped to one
// source repository. Component keys are globally unique within an estate,
// which is what lets edges target components in other projects.
type Component struct {
	Key           string             `yaml:"key"`
	Name          string             `yaml:"name"`
	Type          ComponentType      `yaml:"type"`
	Lifecycle     ComponentLifecycle `yaml:"lifecycle"`
	Description   string             `yaml:"description"`
	Repository    *Repository        `yaml:"repository"`
	DependsOn     []Edge             `yaml:"depends_on"`
	BlockedBy     []Edge             `yaml:"blocked_by"`
	EmitsEventsTo []Edge             `yaml:"emits_events_to"`
	Notes         []string           `yaml:"notes"`
}

// Edges returns the component's outgoing edges grouped by relationship,
// in declaration order.
func (c Component) Edges() map[EdgeRelationship][]Edge {
	return map[EdgeRelationship][]Edge{
		RelationshipDependsOn:     c.DependsOn,
		RelationshipBlockedBy:     c.BlockedBy,
		RelationshipEmitsEventsTo: c.EmitsEventsTo,
	}
}

// Edge is a directed reference from its owning component to another
// component in the same estate
type Edge struct {
	Component string   `yaml:"component"`
	Kind      EdgeKind `yaml:"kind"`
	Rationale string   `yaml:"rationale"`
}

// Repository declares the source repository backing a component
type Repository struct {
	Owner              string   `yaml:"owner"`
	Name               string   `yaml:"name"`
	DefaultBranch      string   `yaml:"default_branch"`
	DocumentationPaths []string `yaml:"documentation_paths"`
}

// Slug returns the lowercased owner/name identity used for repository
// upserts and registry joins
func (r Repository) Slug() string {
	return strings.ToLower(r.Owner + "/" + r.Name)
}

// NoiseFilters is policy input for ingestion; stored serialised, never
// compiled here. JSON tags cover the stored form.
type NoiseFilters struct {
	ExcludePaths          []string `yaml:"exclude_paths" json:"exclude_paths,omitempty"`
	ExcludeAuthors        []string `yaml:"exclude_authors" json:"exclude_authors,omitempty"`
	ExcludeCommitPatterns []string `yaml:"exclude_commit_patterns" json:"exclude_commit_patterns,omitempty"`
}

// StatusPreferences tunes how status reports for the project are produced
type StatusPreferences struct {
	Cadence   string   `yaml:"cadence" json:"cadence,omitempty"`
	Audiences []string `yaml:"audiences" json:"audiences,omitempty"`
	Verbosity string   `yaml:"verbosity" json:"verbosity,omitempty"`
}

// Normalise applies the documented defaults: component type defaults to
// service, lifecycle to active, edge kind to runtime, and repository
// default_branch to main. The loader normalises after decoding; callers
// constructing documents directly should normalise before validating.
func (c *Catalogue) Normalise() {
	for pi := range c.Projects {
		p := &c.Projects[pi]
		for ci := range p.Components {
			comp := &p.Components[ci]
			if comp.Type == "" {
				comp.Type = TypeService
			}
			if comp.Lifecycle == "" {
				comp.Lifecycle = LifecycleActive
			}
			if comp.Repository != nil && comp.Repository.DefaultBranch == "" {
				comp.Repository.DefaultBranch = "main"
			}
			normaliseEdges(comp.DependsOn)
			normaliseEdges(comp.BlockedBy)
			normaliseEdges(comp.EmitsEventsTo)
		}
	}
}

func normaliseEdges(edges []Edge) {
	for i := range edges {
		if edges[i].Kind == "" {
			edges[i].Kind = KindRuntime
		}
	}
}
