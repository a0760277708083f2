// Package plan decodes HCL analysis plans: several engine operations declared as
// labelled blocks and run in file order.
//
//	graph { path = "edges.tsv" }
//	rank "repair" { topics = ["Gene::1", "Gene::2"] top = 25 }
//	explain "tree" { terminals = var.terminals }
package plan

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/DrSkyle/kgexplain/pkg/graph"
)

// Plan is a decoded plan file.
type Plan struct {
	Graph    *GraphBlock    `hcl:"graph,block"`
	Ranks    []RankBlock    `hcl:"rank,block"`
	Explains []ExplainBlock `hcl:"explain,block"`
	Enriches []EnrichBlock  `hcl:"enrich,block"`
	Nulls    []NullBlock    `hcl:"null,block"`
}

// GraphBlock overrides the graph source.
type GraphBlock struct {
	Path     string `hcl:"path,optional"`
	Directed bool   `hcl:"directed,optional"`
	Mock     int    `hcl:"mock,optional"`
}

// RankBlock runs personalized PageRank.
type RankBlock struct {
	Name          string    `hcl:"name,label"`
	Topics        []string  `hcl:"topics,optional"`
	Top           int       `hcl:"top,optional"`
	Damping       *float64  `hcl:"damping,optional"`
	MaxIterations *int      `hcl:"max_iterations,optional"`
	Categories    []string  `hcl:"categories,optional"`
	DeclRange     hcl.Range `hcl:",def_range"`
}

// ExplainBlock builds a Steiner tree.
type ExplainBlock struct {
	Name      string    `hcl:"name,label"`
	Terminals []string  `hcl:"terminals"`
	Strategy  string    `hcl:"strategy,optional"`
	Compare   bool      `hcl:"compare,optional"`
	DeclRange hcl.Range `hcl:",def_range"`
}

// EnrichBlock runs one enrichment test per query set.
type EnrichBlock struct {
	Name      string     `hcl:"name,label"`
	Queries   [][]string `hcl:"queries"`
	Category  string     `hcl:"category,optional"`
	Universe  []string   `hcl:"universe,optional"`
	Selector  string     `hcl:"selector,optional"`
	Alpha     *float64   `hcl:"alpha,optional"`
	DeclRange hcl.Range  `hcl:",def_range"`
}

// NullBlock samples a null distribution.
type NullBlock struct {
	Name          string    `hcl:"name,label"`
	Category      string    `hcl:"category,optional"`
	Universe      []string  `hcl:"universe,optional"`
	Selector      string    `hcl:"selector,optional"`
	SetSize       int       `hcl:"set_size"`
	Samples       int       `hcl:"samples,optional"`
	DegreeMatched bool      `hcl:"degree_matched,optional"`
	Reference     []string  `hcl:"reference,optional"`
	Targets       []string  `hcl:"targets,optional"`
	Observed      []string  `hcl:"observed,optional"`
	Workers       int       `hcl:"workers,optional"`
	Seed          int       `hcl:"seed,optional"`
	DeclRange     hcl.Range `hcl:",def_range"`
}

// Kind names a step type.
type Kind string

const (
	KindRank    Kind = "rank"
	KindExplain Kind = "explain"
	KindEnrich  Kind = "enrich"
	KindNull    Kind = "null"
)

// Step is one operation in file order. Exactly one block pointer is set.
type Step struct {
	Kind    Kind
	Name    string
	Rank    *RankBlock
	Explain *ExplainBlock
	Enrich  *EnrichBlock
	Null    *NullBlock

	pos int
}

// Steps returns every block in the order it appears in the file.
func (p *Plan) Steps() []Step {
	var out []Step
	for i := range p.Ranks {
		b := &p.Ranks[i]
		out = append(out, Step{Kind: KindRank, Name: b.Name, Rank: b, pos: b.DeclRange.Start.Byte})
	}
	for i := range p.Explains {
		b := &p.Explains[i]
		out = append(out, Step{Kind: KindExplain, Name: b.Name, Explain: b, pos: b.DeclRange.Start.Byte})
	}
	for i := range p.Enriches {
		b := &p.Enriches[i]
		out = append(out, Step{Kind: KindEnrich, Name: b.Name, Enrich: b, pos: b.DeclRange.Start.Byte})
	}
	for i := range p.Nulls {
		b := &p.Nulls[i]
		out = append(out, Step{Kind: KindNull, Name: b.Name, Null: b, pos: b.DeclRange.Start.Byte})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	return out
}

// ParseFile reads and decodes the plan at path.
func ParseFile(path string, vars map[string]string) (*Plan, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Parse(src, path, vars)
}

// Parse decodes src. Every vars entry is visible as var.<key>; a value containing
// a comma becomes a list of strings ("a,b" or "a," for a single element).
func Parse(src []byte, filename string, vars map[string]string) (*Plan, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", graph.ErrInvalidArgument, diags.Error())
	}

	var p Plan
	if diags := gohcl.DecodeBody(file.Body, evalContext(vars), &p); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", graph.ErrInvalidArgument, diags.Error())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks label uniqueness and per-block requirements.
func (p *Plan) Validate() error {
	seen := make(map[string]struct{})
	for _, s := range p.Steps() {
		key := string(s.Kind) + "." + s.Name
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate block %s %q", graph.ErrInvalidArgument, s.Kind, s.Name)
		}
		seen[key] = struct{}{}

		switch s.Kind {
		case KindExplain:
			if len(s.Explain.Terminals) == 0 {
				return fmt.Errorf("%w: explain %q has no terminals", graph.ErrInvalidArgument, s.Name)
			}
		case KindEnrich:
			if countSet(s.Enrich.Category != "", len(s.Enrich.Universe) > 0, s.Enrich.Selector != "") != 1 {
				return fmt.Errorf("%w: enrich %q needs exactly one of category, universe, selector", graph.ErrInvalidArgument, s.Name)
			}
		case KindNull:
			if countSet(s.Null.Category != "", len(s.Null.Universe) > 0, s.Null.Selector != "") != 1 {
				return fmt.Errorf("%w: null %q needs exactly one of category, universe, selector", graph.ErrInvalidArgument, s.Name)
			}
			if s.Null.SetSize < 1 {
				return fmt.Errorf("%w: null %q set_size must be >= 1", graph.ErrInvalidArgument, s.Name)
			}
		}
	}
	return nil
}

func countSet(flags ...bool) int {
	var n int
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func evalContext(vars map[string]string) *hcl.EvalContext {
	obj := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		obj[k] = varValue(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(obj)},
		Functions: map[string]function.Function{
			"concat": stdlib.ConcatFunc,
			"join":   stdlib.JoinFunc,
			"length": stdlib.LengthFunc,
			"lower":  stdlib.LowerFunc,
			"split":  stdlib.SplitFunc,
			"upper":  stdlib.UpperFunc,
		},
	}
}

// varValue makes a comma-separated value a list of strings. Any other value is
// a plain string.
func varValue(v string) cty.Value {
	if !strings.Contains(v, ",") {
		return cty.StringVal(v)
	}
	var items []cty.Value
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, cty.StringVal(part))
		}
	}
	if len(items) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	return cty.ListVal(items)
}
