package system

import (
	"time"

	"github.com/citysim/worldcore/internal/world"
)

// epoch anchors frame time so rate limiters see a deterministic clock.
var epoch = time.Unix(0, 0).UTC()

// FrameState is the per-frame context shared by every system. Only
// ReferenceSystem writes it.
type FrameState struct {
	Frame        uint64
	Elapsed      time.Duration
	Reference    world.Reference
	HasReference bool
}

// Now returns simulated time: epoch plus the sum of frame deltas.
func (f *FrameState) Now() time.Time { return epoch.Add(f.Elapsed) }
