// Package sinks delivers rendered report artefacts to their destinations.
// Every sink implements domain.ReportSink; the report row is durable before
// any sink runs, so a failed delivery never loses a report.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/domain"
)

// FilesystemSink writes reports under a base directory:
// {base}/{owner}/{name}/latest.md is overwritten on every report and
// {base}/{owner}/{name}/{window-end}-{report-id}.md is the append-only
// archive.
type FilesystemSink struct {
	base string
	log  zerolog.Logger
}

// NewFilesystemSink creates a filesystem sink rooted at base
func NewFilesystemSink(base string, log zerolog.Logger) (*FilesystemSink, error) {
	if base == "" {
		return nil, errors.New("sink base directory required")
	}
	return &FilesystemSink{
		base: base,
		log:  log.With().Str("sink", "filesystem").Logger(),
	}, nil
}

// WriteReport writes the latest and archive copies of the report
func (s *FilesystemSink) WriteReport(_ context.Context, markdown string, meta domain.ReportMeta) error {
	if err := validateMeta(meta); err != nil {
		return err
	}

	dir := filepath.Join(s.base, meta.Owner, meta.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	content := []byte(markdown)
	latest := filepath.Join(dir, "latest.md")
	if err := os.WriteFile(latest, content, 0o644); err != nil {
		return fmt.Errorf("failed to write latest report: %w", err)
	}

	archive := filepath.Join(dir, archiveName(meta))
	if err := os.WriteFile(archive, content, 0o644); err != nil {
		return fmt.Errorf("failed to write report archive: %w", err)
	}

	s.log.Debug().
		Str("report_id", meta.ReportID).
		Str("path", archive).
		Msg("Report written to filesystem")
	return nil
}

func archiveName(meta domain.ReportMeta) string {
	return fmt.Sprintf("%s-%s.md", meta.WindowEnd.UTC().Format("2006-01-02"), meta.ReportID)
}

func validateMeta(meta domain.ReportMeta) error {
	if meta.Owner == "" || meta.Name == "" || meta.ReportID == "" {
		return errors.New("report metadata incomplete")
	}
	// Owner and name become path segments
	if strings.ContainsAny(meta.Owner+meta.Name, `/\`) {
		return fmt.Errorf("invalid repository identifier %s/%s", meta.Owner, meta.Name)
	}
	return nil
}
