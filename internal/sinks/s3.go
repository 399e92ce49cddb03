package sinks

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/clients/s3store"
	"github.com/wildside/ghillie/internal/domain"
)

// S3Sink mirrors the filesystem layout into an object store: a latest.md
// object overwritten per repository plus an append-only archive object.
type S3Sink struct {
	client *s3store.Client
	prefix string
	log    zerolog.Logger
}

// NewS3Sink creates an object-store sink. Prefix may be empty to write at
// the bucket root.
func NewS3Sink(client *s3store.Client, prefix string, log zerolog.Logger) *S3Sink {
	return &S3Sink{
		client: client,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With().Str("sink", "s3").Logger(),
	}
}

// WriteReport uploads the latest and archive copies of the report
func (s *S3Sink) WriteReport(ctx context.Context, markdown string, meta domain.ReportMeta) error {
	if err := validateMeta(meta); err != nil {
		return err
	}

	latest, archive := s.objectKeys(meta)
	size := int64(len(markdown))
	if err := s.client.Upload(ctx, latest, strings.NewReader(markdown), size); err != nil {
		return fmt.Errorf("failed to upload latest report: %w", err)
	}
	if err := s.client.Upload(ctx, archive, strings.NewReader(markdown), size); err != nil {
		return fmt.Errorf("failed to upload report archive: %w", err)
	}

	s.log.Debug().
		Str("report_id", meta.ReportID).
		Str("key", archive).
		Msg("Report written to object store")
	return nil
}

func (s *S3Sink) objectKeys(meta domain.ReportMeta) (latest, archive string) {
	dir := path.Join(s.prefix, meta.Owner, meta.Name)
	return path.Join(dir, "latest.md"), path.Join(dir, archiveName(meta))
}
