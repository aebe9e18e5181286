package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/core/ecs"
	coresys "github.com/citysim/worldcore/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at frame end,
// dropping LOD, physics and distance state of deregistered entities.
// Phase 7 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
	log   *zap.Logger
}

func NewCleanupSystem(world *ecs.World, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: world, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if s.world.PendingDestruction() == 0 {
		return
	}
	if n := s.world.FlushDestroyQueue(); n > 0 {
		s.log.Debug("entities released", zap.Int("count", n))
	}
}
