package engine

import (
	"context"
	"fmt"

	"github.com/DrSkyle/kgexplain/pkg/report"
	"github.com/DrSkyle/kgexplain/pkg/storage"
)

// Artifacts encodes one result. In CSV, enrichment reports export their mappings
// and null reports export their records plus a JSON summary.
func Artifacts(format report.Format, name string, v any) ([]report.Artifact, error) {
	if format == report.FormatCSV {
		switch r := v.(type) {
		case *EnrichReport:
			a, err := report.Encode(format, name, r.Results)
			return []report.Artifact{a}, err
		case *NullReport:
			records, err := report.Encode(format, name, r.Records)
			if err != nil {
				return nil, err
			}
			summary, err := report.Encode(report.FormatJSON, name+".summary", r)
			if err != nil {
				return nil, err
			}
			return []report.Artifact{records, summary}, nil
		}
	}
	a, err := report.Encode(format, name, v)
	if err != nil {
		return nil, err
	}
	return []report.Artifact{a}, nil
}

// Export writes results to target, a local directory or s3://bucket/prefix.
// Keys are <kind>/<name>.<ext>.
func (e *Engine) Export(ctx context.Context, target string, format report.Format, results ...Result) error {
	store, err := storage.Open(ctx, target)
	if err != nil {
		return err
	}
	var all []report.Artifact
	for _, r := range results {
		as, err := Artifacts(format, fmt.Sprintf("%s/%s", r.Kind, r.Name), r.Value)
		if err != nil {
			return err
		}
		all = append(all, as...)
	}
	if err := report.Export(ctx, store, all...); err != nil {
		return err
	}
	e.Logger.Info("artifacts exported", "target", target, "count", len(all))
	return nil
}
