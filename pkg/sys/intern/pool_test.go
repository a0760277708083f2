package intern

import (
	"sync"
	"testing"
)

func TestPool(t *testing.T) {
	p := NewPool()
	if id := p.ID(""); id != InvalidID {
		t.Fatalf("Empty string should map to InvalidID, got %d", id)
	}
	gene := p.ID("Gene")
	if gene != 1 {
		t.Errorf("Expected first symbol 1, got %d", gene)
	}
	if again := p.ID("Gene"); again != gene {
		t.Errorf("Expected stable id %d, got %d", gene, again)
	}
	if _, ok := p.Lookup("Drug"); ok {
		t.Error("Lookup must not allocate")
	}
	if s := p.String(gene); s != "Gene" {
		t.Errorf("Expected Gene, got %q", s)
	}
	if s := p.String(99); s != "" {
		t.Errorf("Unknown id should be empty, got %q", s)
	}
	if p.Len() != 1 {
		t.Errorf("Expected 1 symbol, got %d", p.Len())
	}
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPool()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, s := range []string{"Gene", "Pathway", "Disease", "Drug"} {
				p.Intern(s)
			}
		}()
	}
	wg.Wait()
	if p.Len() != 4 {
		t.Errorf("Expected 4 symbols, got %d", p.Len())
	}
}
