package edgelist

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/kgexplain/pkg/graph"
)

const sampleCSV = `subject_id,object_id,subject_id_prefix,object_id_prefix,subject_name,object_name,predicate,Primary_Knowledge_Source,Knowledge_Source,publications,subject_category,object_category
NCBIGene::5972,REACT::R-HSA-1,NCBIGene,REACT,REN,Metabolism,participates_in,infores:reactome,reactome,"PMID:1,PMID:2",Gene,Pathway
NCBIGene::958,REACT::R-HSA-1,NCBIGene,REACT,CD40,Metabolism (dup),participates_in,infores:reactome,reactome,,Gene,Pathway
NCBIGene::958,NCBIGene::958,,,,,self,,,,Gene,Gene
,REACT::R-HSA-1,,,,,,,,,,
`

func TestRead_CSV(t *testing.T) {
	g, err := Read(strings.NewReader(sampleCSV), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 2, g.EdgeCount(), "self-loop dropped from topology")
	assert.Len(t, g.Edges(), 3, "raw records are kept")

	n, err := g.Node("REACT::R-HSA-1")
	require.NoError(t, err)
	assert.Equal(t, "Metabolism", n.Name, "first appearance wins")
	assert.Equal(t, "Pathway", n.Category)
	assert.Equal(t, "REACT", n.Source)

	e := g.Edges()[0]
	assert.Equal(t, "PMID:1,PMID:2", e.Publications)
	assert.Equal(t, "infores:reactome", e.PrimaryKnowledgeSource)
	assert.Equal(t, []string{"NCBIGene::5972", "NCBIGene::958"}, g.NodesInCategory("Gene"))
}

func TestRead_MinimalColumns(t *testing.T) {
	g, err := Read(strings.NewReader("object_id,subject_id\nb,CHEBI:1\n"), Options{Directed: true})
	require.NoError(t, err)
	assert.True(t, g.Directed())

	nbrs, err := g.Neighbors("CHEBI:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, nbrs)
	n, _ := g.Node("CHEBI:1")
	assert.Equal(t, "CHEBI", n.Source)
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("subject_id,target\na,b\n"), Options{})
	assert.True(t, errors.Is(err, graph.ErrInvalidArgument))

	_, err = Read(strings.NewReader(""), Options{})
	assert.True(t, errors.Is(err, graph.ErrInvalidArgument))
}

func TestLoad_TSVGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.tsv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.ReplaceAll(sampleCSV, ",", "\t")))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	g, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
	assert.True(t, g.Has("NCBIGene::958"))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
