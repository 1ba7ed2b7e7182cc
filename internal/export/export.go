package export

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"babylog/internal/babylog"
	"babylog/internal/config"
	"babylog/internal/model"
)

// Result describes a finished export.
type Result struct {
	Location string
	Records  int
	Bytes    int64
}

// Exporter encodes records and hands them to a Target.
type Exporter struct {
	target Target
	clock  babylog.Clock
	logger babylog.Logger
}

func NewExporter(target Target, clock babylog.Clock, logger babylog.Logger) *Exporter {
	return &Exporter{target: target, clock: clock, logger: logger}
}

// FileName is the export name for the given moment and format.
func FileName(now time.Time, format Format) string {
	return fmt.Sprintf("babylog-%s.%s", now.UTC().Format("20060102T150405Z"), format)
}

// Export writes records oldest first. The input slice is not modified.
func (e *Exporter) Export(ctx context.Context, records []*model.Record, format Format) (*Result, error) {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *model.Record) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	var buf bytes.Buffer
	if err := Encode(&buf, sorted, format); err != nil {
		return nil, err
	}

	name := FileName(e.clock.Now(), format)
	size := int64(buf.Len())
	location, err := e.target.Put(ctx, name, &buf, size, format.ContentType())
	if err != nil {
		return nil, fmt.Errorf("exporting %s: %w", name, err)
	}

	e.logger.Info("history exported", "location", location, "records", len(sorted), "bytes", size)
	return &Result{Location: location, Records: len(sorted), Bytes: size}, nil
}

// NewTargetFromConfig creates a Target based on the provided configuration.
func NewTargetFromConfig(ctx context.Context, cfg config.ExportConfig) (Target, error) {
	switch cfg.Type {
	case "filesystem", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem export requires dir to be set")
		}
		t, err := NewFileSystemTarget(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "s3":
		t, err := NewS3Target(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "memory":
		return NewMemoryTarget(), nil
	default:
		return nil, fmt.Errorf("unknown export type: %q", cfg.Type)
	}
}
