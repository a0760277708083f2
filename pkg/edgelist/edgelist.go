// Package edgelist reads tabular knowledge-graph edge lists into a graph.Store.
package edgelist

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/DrSkyle/kgexplain/pkg/graph"
)

// Column names of the edge-list contract.
const (
	ColSubjectID       = "subject_id"
	ColObjectID        = "object_id"
	ColSubjectPrefix   = "subject_id_prefix"
	ColObjectPrefix    = "object_id_prefix"
	ColSubjectName     = "subject_name"
	ColObjectName      = "object_name"
	ColPredicate       = "predicate"
	ColPrimarySource   = "Primary_Knowledge_Source"
	ColKnowledgeSource = "Knowledge_Source"
	ColPublications    = "publications"
	ColSubjectCategory = "subject_category"
	ColObjectCategory  = "object_category"
)

// Options controls parsing.
type Options struct {
	// Delimiter overrides the separator. Zero picks tab for .tsv names, comma otherwise.
	Delimiter rune
	Directed  bool
	Logger    *slog.Logger
}

// Load opens path and reads it. A .gz suffix is decompressed.
func Load(path string, opts Options) (*graph.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edge list: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
		if strings.Contains(strings.ToLower(path), ".tsv") {
			opts.Delimiter = '\t'
		}
	}
	return Read(r, opts)
}

// Read parses an edge list with a header row. Only subject_id and object_id are
// required; the first row mentioning a node defines its name, category and source.
func Read(r io.Reader, opts Options) (*graph.Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty edge list", graph.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, req := range []string{ColSubjectID, ColObjectID} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("%w: edge list is missing column %q", graph.ErrInvalidArgument, req)
		}
	}

	b := graph.NewBuilder(graph.WithDirected(opts.Directed))
	seen := make(map[string]struct{})
	var rows, skipped int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Drain the builder before bailing out.
			_, _ = b.Build()
			return nil, fmt.Errorf("read row %d: %w", rows+2, err)
		}
		rows++
		field := func(name string) string {
			if i, ok := cols[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		subj, obj := field(ColSubjectID), field(ColObjectID)
		if subj == "" || obj == "" {
			skipped++
			continue
		}
		for _, n := range []graph.Node{
			{ID: subj, Name: field(ColSubjectName), Category: field(ColSubjectCategory), Source: field(ColSubjectPrefix)},
			{ID: obj, Name: field(ColObjectName), Category: field(ColObjectCategory), Source: field(ColObjectPrefix)},
		} {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			if n.Source == "" {
				n.Source = prefix(n.ID)
			}
			b.AddNode(n)
		}
		b.AddEdge(graph.Edge{
			Subject:                subj,
			Object:                 obj,
			Predicate:              field(ColPredicate),
			PrimaryKnowledgeSource: field(ColPrimarySource),
			KnowledgeSource:        field(ColKnowledgeSource),
			Publications:           field(ColPublications),
		})
	}

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	logger.Info("edge list loaded", "rows", rows, "skipped", skipped, "nodes", g.Len(), "edges", g.EdgeCount())
	return g, nil
}

// prefix is the CURIE namespace of id ("NCBIGene::5972" -> "NCBIGene").
func prefix(id string) string {
	if i := strings.Index(id, "::"); i > 0 {
		return id[:i]
	}
	if i := strings.IndexByte(id, ':'); i > 0 {
		return id[:i]
	}
	return ""
}
