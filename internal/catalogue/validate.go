package catalogue

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)
	repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ValidationError reports every problem found in a catalogue document.
// Issues is never empty and always a list, even for a single finding.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "catalogue validation failed: " + strings.Join(e.Issues, "; ")
}

var validTypes = map[ComponentType]bool{
	TypeService: true, TypeUI: true, TypeLibrary: true, TypeDataPipeline: true,
	TypeJob: true, TypeTooling: true, TypeOther: true,
}

var validLifecycles = map[ComponentLifecycle]bool{
	LifecyclePlanned: true, LifecycleActive: true, LifecycleDeprecated: true,
}

var validKinds = map[EdgeKind]bool{
	KindRuntime: true, KindDev: true, KindTest: true, KindOps: true,
}

// Validate checks the structural, referential, and slug rules of a parsed
// catalogue. It returns nil when every rule holds, otherwise a
// *ValidationError carrying the complete list of issues, never only the
// first one found.
func Validate(c *Catalogue) error {
	var issues []string

	if c.Version < 1 {
		issues = append(issues, fmt.Sprintf("version must be >= 1, got %d", c.Version))
	}

	// Programme keys: slug shape and uniqueness
	programmeKeys := make(map[string]bool, len(c.Programmes))
	for _, prog := range c.Programmes {
		if !slugPattern.MatchString(prog.Key) {
			issues = append(issues, fmt.Sprintf("programme key %q is not a valid slug", prog.Key))
		}
		if programmeKeys[prog.Key] {
			issues = append(issues, fmt.Sprintf("duplicate programme key %q", prog.Key))
		}
		programmeKeys[prog.Key] = true
	}

	// Project keys: slug shape and uniqueness; build the global component
	// index (componentKey -> projectKey) the edge checks resolve against
	projectKeys := make(map[string]bool, len(c.Projects))
	componentOwner := make(map[string]string)
	for _, proj := range c.Projects {
		if !slugPattern.MatchString(proj.Key) {
			issues = append(issues, fmt.Sprintf("project key %q is not a valid slug", proj.Key))
		}
		if projectKeys[proj.Key] {
			issues = append(issues, fmt.Sprintf("duplicate project key %q", proj.Key))
		}
		projectKeys[proj.Key] = true

		for _, comp := range proj.Components {
			if !slugPattern.MatchString(comp.Key) {
				issues = append(issues, fmt.Sprintf("component key %q in project %q is not a valid slug", comp.Key, proj.Key))
			}
			if owner, dup := componentOwner[comp.Key]; dup {
				issues = append(issues, fmt.Sprintf("component key %q in project %q already used in project %q (component keys must be unique across the whole catalogue)", comp.Key, proj.Key, owner))
				continue
			}
			componentOwner[comp.Key] = proj.Key
		}
	}

	// Programme references both ways
	for _, proj := range c.Projects {
		if proj.Programme != "" && !programmeKeys[proj.Programme] {
			issues = append(issues, fmt.Sprintf("project %q references unknown programme %q", proj.Key, proj.Programme))
		}
	}
	for _, prog := range c.Programmes {
		for _, member := range prog.Projects {
			if !projectKeys[member] {
				issues = append(issues, fmt.Sprintf("programme %q references unknown project %q", prog.Key, member))
			}
		}
	}

	// Per-component checks: field domains, repository identity, edges
	for _, proj := range c.Projects {
		for _, comp := range proj.Components {
			if !validTypes[comp.Type] {
				issues = append(issues, fmt.Sprintf("component %q has invalid type %q", comp.Key, comp.Type))
			}
			if !validLifecycles[comp.Lifecycle] {
				issues = append(issues, fmt.Sprintf("component %q has invalid lifecycle %q", comp.Key, comp.Lifecycle))
			}

			if repo := comp.Repository; repo != nil {
				if !repoNamePattern.MatchString(repo.Owner) {
					issues = append(issues, fmt.Sprintf("component %q repository owner %q is invalid", comp.Key, repo.Owner))
				}
				if !repoNamePattern.MatchString(repo.Name) {
					issues = append(issues, fmt.Sprintf("component %q repository name %q is invalid", comp.Key, repo.Name))
				}
				if repo.DefaultBranch == "" {
					issues = append(issues, fmt.Sprintf("component %q repository default_branch must not be empty", comp.Key))
				}
			}

			edgeGroups := []struct {
				rel   EdgeRelationship
				edges []Edge
			}{
				{RelationshipDependsOn, comp.DependsOn},
				{RelationshipBlockedBy, comp.BlockedBy},
				{RelationshipEmitsEventsTo, comp.EmitsEventsTo},
			}
			for _, group := range edgeGroups {
				rel := group.rel
				for _, edge := range group.edges {
					if edge.Component == comp.Key {
						issues = append(issues, fmt.Sprintf("component %q has a self-referencing %s edge", comp.Key, rel))
						continue
					}
					if _, ok := componentOwner[edge.Component]; !ok {
						issues = append(issues, fmt.Sprintf("component %q %s edge targets unknown component %q", comp.Key, rel, edge.Component))
					}
					if !validKinds[edge.Kind] {
						issues = append(issues, fmt.Sprintf("component %q %s edge to %q has invalid kind %q", comp.Key, rel, edge.Component, edge.Kind))
					}
				}
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
