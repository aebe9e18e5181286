package system

import (
	"time"

	"github.com/citysim/worldcore/internal/core/event"
	coresys "github.com/citysim/worldcore/internal/core/system"
)

// NotifySystem publishes the notifications emitted earlier in the frame.
// Phase 5 (Output).
type NotifySystem struct {
	bus *event.Bus
}

func NewNotifySystem(bus *event.Bus) *NotifySystem {
	return &NotifySystem{bus: bus}
}

func (s *NotifySystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *NotifySystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
