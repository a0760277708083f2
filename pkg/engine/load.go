package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/DrSkyle/kgexplain/pkg/config"
	"github.com/DrSkyle/kgexplain/pkg/edgelist"
	"github.com/DrSkyle/kgexplain/pkg/graph"
)

// MockCategories label the nodes of a mock graph in rotation.
var MockCategories = []string{"Gene", "Pathway", "Disease", "Drug"}

// mockAttachment is the edges added per node of a mock graph.
const mockAttachment = 2

// LoadGraph reads the configured edge list, or generates a Barabasi-Albert graph
// when cfg.Mock is set.
func LoadGraph(ctx context.Context, cfg config.GraphConfig, seed uint64, logger *slog.Logger) (*graph.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	_, span := otel.Tracer("kgexplain/engine").Start(ctx, "kgexplain/load")
	defer span.End()

	start := time.Now()
	var (
		g   *graph.Store
		err error
	)
	switch {
	case cfg.Mock > 0:
		if cfg.Directed {
			err = fmt.Errorf("%w: mock graphs are undirected", graph.ErrInvalidArgument)
			break
		}
		span.SetAttributes(attribute.Int("mock", cfg.Mock))
		g, err = graph.BarabasiAlbert(cfg.Mock, mockAttachment, seed, MockCategories...)
	case cfg.Path != "":
		span.SetAttributes(attribute.String("path", cfg.Path))
		g, err = edgelist.Load(cfg.Path, edgelist.Options{Directed: cfg.Directed, Logger: logger})
	default:
		err = fmt.Errorf("%w: no graph source: set --graph or --mock", graph.ErrInvalidArgument)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("nodes", g.Len()), attribute.Int("edges", g.EdgeCount()))
	logger.Info("graph ready", "nodes", g.Len(), "edges", g.EdgeCount(), "directed", g.Directed(), "took", time.Since(start))
	return g, nil
}
