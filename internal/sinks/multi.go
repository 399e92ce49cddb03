package sinks

import (
	"context"
	"errors"

	"github.com/wildside/ghillie/internal/domain"
)

// MultiSink fans a report out to several sinks. Every sink is attempted
// even when an earlier one fails; the failures come back joined.
type MultiSink struct {
	sinks []domain.ReportSink
}

// NewMultiSink combines sinks into one. Nil entries are dropped.
func NewMultiSink(sinks ...domain.ReportSink) *MultiSink {
	kept := make([]domain.ReportSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	return &MultiSink{sinks: kept}
}

// WriteReport delivers to every sink in order
func (s *MultiSink) WriteReport(ctx context.Context, markdown string, meta domain.ReportMeta) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.WriteReport(ctx, markdown, meta); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
