package world

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds     = errors.New("region coordinate out of bounds")
	ErrStaleGeneration = errors.New("stale region generation")
	ErrNotLoaded       = errors.New("region not loaded")
	ErrDuplicateEntity = errors.New("entity already registered")
	ErrUnknownCategory = errors.New("unknown entity category")
	ErrAllocation      = errors.New("physics resource allocation failed")
)

// BoundsError reports a coordinate outside the configured world extent.
type BoundsError struct {
	Coord  RegionCoord
	Bounds Bounds
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("region (%d,%d) outside [%d..%d]x[%d..%d]",
		e.Coord.X, e.Coord.Z, e.Bounds.MinX, e.Bounds.MaxX, e.Bounds.MinZ, e.Bounds.MaxZ)
}

func (e *BoundsError) Unwrap() error { return ErrOutOfBounds }

// StaleGenerationError is returned when a completion no longer matches the
// region it was generated for.
type StaleGenerationError struct {
	Coord   RegionCoord
	Got     uint32
	Current uint32
	State   RegionState
}

func (e *StaleGenerationError) Error() string {
	return fmt.Sprintf("region (%d,%d): completion for generation %d, region is %s at generation %d",
		e.Coord.X, e.Coord.Z, e.Got, e.State, e.Current)
}

func (e *StaleGenerationError) Unwrap() error { return ErrStaleGeneration }
