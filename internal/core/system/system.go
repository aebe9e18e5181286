package system

import "time"

// Phase orders systems within a single frame. The order is the data flow of
// the world core: reference and distances first, physics last.
type Phase int

const (
	PhaseReference Phase = iota // 0: sample reference, refresh distance cache
	PhaseStream                 // 1: region completions + streaming
	PhaseLimit                  // 2: entity ceilings
	PhaseLOD                    // 3: tier assignment
	PhasePhysics                // 4: physics residency
	PhaseOutput                 // 5: dispatch notifications
	PhasePersist                // 6: generation ledger
	PhaseCleanup                // 7: release destroyed entities
)

func (p Phase) String() string {
	switch p {
	case PhaseReference:
		return "reference"
	case PhaseStream:
		return "stream"
	case PhaseLimit:
		return "limit"
	case PhaseLOD:
		return "lod"
	case PhasePhysics:
		return "physics"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is implemented by every per-frame stage.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
