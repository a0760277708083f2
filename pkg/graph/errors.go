package graph

import "errors"

var (
	// ErrNodeNotFound is returned when an id was never declared in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInsufficientPopulation is returned when a sample asks for more nodes than exist.
	ErrInsufficientPopulation = errors.New("insufficient population")

	// ErrInvalidArgument covers malformed input: empty sets, unknown categories, bad options.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSealed is returned when a builder is used after Build.
	ErrSealed = errors.New("graph builder already sealed")
)
