package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/DrSkyle/kgexplain/pkg/sys/intern"
)

type opKind uint8

const (
	opNode opKind = iota
	opEdge
)

type graphOp struct {
	kind opKind
	node Node
	edge Edge
}

// Builder accumulates nodes and edges and produces an immutable Store.
// AddNode and AddEdge may be called from several goroutines; a single builder
// goroutine owns the state until Build seals the pipeline.
type Builder struct {
	directed bool

	mu     sync.RWMutex // guards sealed against sends on a closed opChan
	sealed bool

	// Pipeline Architecture
	opChan    chan graphOp
	buildDone chan struct{}

	// Owned by the builder goroutine.
	nodes      []Node
	idMap      map[string]uint32
	records    []Edge
	categories *intern.Pool
	err        error
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDirected keeps edge direction. Undirected is the default.
func WithDirected(directed bool) BuilderOption {
	return func(b *Builder) {
		b.directed = directed
	}
}

// WithCapacity pre-sizes node storage.
func WithCapacity(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.nodes = make([]Node, 0, n)
			b.idMap = make(map[string]uint32, n)
		}
	}
}

// NewBuilder starts the builder goroutine. Build must be called to release it.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		nodes:      make([]Node, 0, 1024),
		idMap:      make(map[string]uint32, 1024),
		categories: intern.NewPool(),
		opChan:     make(chan graphOp, 4096),
		buildDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Builder) run() {
	defer close(b.buildDone)
	for op := range b.opChan {
		if b.err != nil {
			continue
		}
		switch op.kind {
		case opNode:
			b.unsafeAddNode(op.node)
		case opEdge:
			b.records = append(b.records, op.edge)
		}
	}
}

// AddNode declares a node. Duplicate or empty ids surface as an error from Build.
func (b *Builder) AddNode(n Node) {
	b.push(graphOp{kind: opNode, node: n})
}

// AddEdge declares an edge. Endpoints are validated by Build, so edges may be
// queued before their nodes.
func (b *Builder) AddEdge(e Edge) {
	b.push(graphOp{kind: opEdge, edge: e})
}

// Connect is AddEdge for a bare (subject, object) pair.
func (b *Builder) Connect(subject, object string) {
	b.AddEdge(Edge{Subject: subject, Object: object})
}

func (b *Builder) push(op graphOp) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.sealed {
		return
	}
	b.opChan <- op
}

// unsafeAddNode runs in the builder goroutine.
func (b *Builder) unsafeAddNode(n Node) {
	if n.ID == "" {
		b.err = fmt.Errorf("%w: node with empty id", ErrInvalidArgument)
		return
	}
	if _, exists := b.idMap[n.ID]; exists {
		b.err = fmt.Errorf("%w: duplicate node %s", ErrInvalidArgument, n.ID)
		return
	}
	n.Index = uint32(len(b.nodes))
	n.Category = b.categories.Intern(n.Category)
	b.idMap[n.ID] = n.Index
	b.nodes = append(b.nodes, n)
}

// Build seals the pipeline, validates every edge endpoint and returns the
// simplified Store. Parallel edges and self-loops are dropped from adjacency.
// Calling Build twice returns ErrSealed.
func (b *Builder) Build() (*Store, error) {
	b.mu.Lock()
	if b.sealed {
		b.mu.Unlock()
		return nil, ErrSealed
	}
	b.sealed = true
	close(b.opChan)
	b.mu.Unlock()
	<-b.buildDone

	if b.err != nil {
		return nil, b.err
	}

	n := len(b.nodes)
	s := &Store{
		directed:   b.directed,
		nodes:      b.nodes,
		idMap:      b.idMap,
		adj:        make([][]uint32, n),
		records:    b.records,
		categories: b.categories,
		byCategory: make([][]uint32, b.categories.Len()+1),
	}
	if b.directed {
		s.radj = make([][]uint32, n)
	} else {
		s.radj = s.adj
	}

	for _, e := range b.records {
		src, ok := b.idMap[e.Subject]
		if !ok {
			return nil, fmt.Errorf("%w: edge %s -> %s references undeclared subject", ErrNodeNotFound, e.Subject, e.Object)
		}
		dst, ok := b.idMap[e.Object]
		if !ok {
			return nil, fmt.Errorf("%w: edge %s -> %s references undeclared object", ErrNodeNotFound, e.Subject, e.Object)
		}
		if src == dst {
			continue
		}
		s.adj[src] = append(s.adj[src], dst)
		if b.directed {
			s.radj[dst] = append(s.radj[dst], src)
		} else {
			s.adj[dst] = append(s.adj[dst], src)
		}
	}

	total := 0
	for i := range s.adj {
		s.adj[i] = sortUnique(s.adj[i])
		total += len(s.adj[i])
	}
	if b.directed {
		for i := range s.radj {
			s.radj[i] = sortUnique(s.radj[i])
		}
		s.edgeCount = total
	} else {
		s.edgeCount = total / 2
	}

	for i, node := range s.nodes {
		sym := b.categories.ID(node.Category)
		s.byCategory[sym] = append(s.byCategory[sym], uint32(i))
	}

	return s, nil
}

func sortUnique(v []uint32) []uint32 {
	if len(v) < 2 {
		return v
	}
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
	out := v[:1]
	for _, x := range v[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

// FromRecords builds a Store in one call.
func FromRecords(nodes []Node, edges []Edge, opts ...BuilderOption) (*Store, error) {
	b := NewBuilder(append([]BuilderOption{WithCapacity(len(nodes))}, opts...)...)
	for _, n := range nodes {
		b.AddNode(n)
	}
	for _, e := range edges {
		b.AddEdge(e)
	}
	return b.Build()
}
