package evidence

import (
	"regexp"
	"strings"
)

// Label classification wins over title classification because labels are
// explicit intent. Within labels, bug beats feature so a "bug + feature"
// combination reads as bug.
var labelOrder = []struct {
	workType WorkType
	labels   map[string]bool
}{
	{WorkBug, map[string]bool{"bug": true, "bugfix": true, "fix": true, "defect": true, "hotfix": true}},
	{WorkFeature, map[string]bool{"feature": true, "enhancement": true, "feat": true}},
	{WorkRefactor, map[string]bool{"refactor": true, "refactoring": true, "tech-debt": true}},
	{WorkDocumentation, map[string]bool{"documentation": true, "docs": true}},
	{WorkChore, map[string]bool{"chore": true, "maintenance": true, "dependencies": true, "build": true}},
}

// Conventional-commit prefixes resolve before the general word patterns,
// and chore-style prefixes resolve before feature and refactor so that
// "ci: fix X" reads as chore rather than bug.
var conventionalOrder = []struct {
	workType WorkType
	prefixes []string
}{
	{WorkBug, []string{"fix", "bugfix", "hotfix"}},
	{WorkChore, []string{"chore", "build", "ci", "test", "style", "revert", "deps"}},
	{WorkFeature, []string{"feat", "feature"}},
	{WorkRefactor, []string{"refactor", "perf"}},
}

// General word-boundary fallbacks, weakest signal last
var wordPatternOrder = []struct {
	workType WorkType
	pattern  *regexp.Regexp
}{
	{WorkBug, regexp.MustCompile(`(?i)\b(bug|fix|fixes|fixed|broken|crash|regression)\b`)},
	{WorkFeature, regexp.MustCompile(`(?i)\b(add|adds|added|implement|implements|implemented|introduce|introduces|feature)\b`)},
	{WorkRefactor, regexp.MustCompile(`(?i)\b(refactor|refactors|refactored|restructure|rework|simplify|simplifies)\b`)},
	{WorkChore, regexp.MustCompile(`(?i)\b(bump|bumps|upgrade|upgrades|update|updates|dependency|dependencies|cleanup)\b`)},
}

// conventionalPrefix matches "type: subject" and "type(scope): subject"
var conventionalPrefix = regexp.MustCompile(`^([a-z]+)(\([^)]*\))?!?:`)

// ClassifyLabels resolves a work type from labels alone, or unknown
func ClassifyLabels(labels []string) WorkType {
	if len(labels) == 0 {
		return WorkUnknown
	}
	normalised := make(map[string]bool, len(labels))
	for _, label := range labels {
		normalised[strings.ToLower(strings.TrimSpace(label))] = true
	}
	for _, entry := range labelOrder {
		for label := range normalised {
			if entry.labels[label] {
				return entry.workType
			}
		}
	}
	return WorkUnknown
}

// ClassifyTitle resolves a work type from a title or commit message,
// trying conventional-commit prefixes before word-boundary patterns
func ClassifyTitle(title string) WorkType {
	text := strings.ToLower(strings.TrimSpace(title))
	if text == "" {
		return WorkUnknown
	}

	if m := conventionalPrefix.FindStringSubmatch(text); m != nil {
		for _, entry := range conventionalOrder {
			for _, prefix := range entry.prefixes {
				if m[1] == prefix {
					return entry.workType
				}
			}
		}
	}

	for _, entry := range wordPatternOrder {
		if entry.pattern.MatchString(text) {
			return entry.workType
		}
	}
	return WorkUnknown
}

// ClassifyWork resolves labels first and falls back to the title
func ClassifyWork(labels []string, title string) WorkType {
	if wt := ClassifyLabels(labels); wt != WorkUnknown {
		return wt
	}
	return ClassifyTitle(title)
}

// IsMergeCommit reports whether a commit message introduces a merge.
// Merge commits are excluded from work-type groupings.
func IsMergeCommit(message string) bool {
	lower := strings.ToLower(message)
	return strings.HasPrefix(lower, "merge ") || strings.HasPrefix(lower, "merge pull request")
}

// firstLine returns the subject line of a commit message
func firstLine(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return strings.TrimSpace(message[:idx])
	}
	return strings.TrimSpace(message)
}

// truncateSample trims a sample title to at most limit runes
func truncateSample(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
