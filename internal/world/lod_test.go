package world

import (
	"testing"

	"github.com/citysim/worldcore/internal/core/ecs"
)

func TestLODNoFlickerInsideMargin(t *testing.T) {
	lod := NewLODCoordinator(testProfiles(), 0)
	id := ecs.EntityID(1)

	if ch, ok := lod.UpdateTier(id, CategoryVehicle, 90*90); !ok || ch.From != TierUnassigned || ch.To != TierFull {
		t.Fatalf("initial assignment = %+v %v", ch, ok)
	}

	changes := 0
	for _, d := range []float32{95, 105, 98, 103} {
		if _, ok := lod.UpdateTier(id, CategoryVehicle, d*d); ok {
			changes++
		}
	}
	if changes != 0 {
		t.Fatalf("tier changed %d times around the boundary", changes)
	}
	if lod.Tier(id) != TierFull {
		t.Fatalf("tier = %s, want full", lod.Tier(id))
	}
}

func TestLODHysteresisReferencesCurrentTier(t *testing.T) {
	lod := NewLODCoordinator(testProfiles(), 0)
	id := ecs.EntityID(2)
	cat := CategoryStructure

	steps := []struct {
		d      float32
		want   Tier
		change bool
	}{
		{50, TierFull, true},      // first assignment
		{109, TierFull, false},    // inside upper+margin
		{111, TierReduced, true},  // past 100+10
		{95, TierReduced, false},  // back under 100, but not under 100-10
		{89, TierFull, true},      // under 100-10
		{700, TierHidden, true},   // coarsest tier whose lower bound <= d
		{595, TierHidden, false},  // above 600-10
		{120, TierReduced, true},  // finest tier whose upper bound >= d
		{255, TierReduced, false}, // 250+10 not crossed
	}
	for i, s := range steps {
		ch, ok := lod.UpdateTier(id, cat, s.d*s.d)
		if ok != s.change {
			t.Fatalf("step %d (d=%v): changed=%v, want %v", i, s.d, ok, s.change)
		}
		if got := lod.Tier(id); got != s.want {
			t.Fatalf("step %d (d=%v): tier %s, want %s", i, s.d, got, s.want)
		}
		if ok && (ch.To != s.want || ch.ID != id || ch.Category != cat) {
			t.Fatalf("step %d: change %+v", i, ch)
		}
	}
}

func TestLODDirtyFilterKeepsOutcome(t *testing.T) {
	filtered := NewLODCoordinator(testProfiles(), 1)
	plain := NewLODCoordinator(testProfiles(), 0)
	id := ecs.EntityID(3)

	// The entity settles just past full's hold band (100+10) in steps
	// smaller than the dirty delta.
	path := []float32{90, 109.5}
	for i := 0; i < 1000; i++ {
		path = append(path, 110.4)
	}
	for i, d := range path {
		fc, fok := filtered.UpdateTier(id, CategoryVehicle, d*d)
		pc, pok := plain.UpdateTier(id, CategoryVehicle, d*d)
		if fok != pok || fc != pc {
			t.Fatalf("step %d (d=%v): filtered %+v %v, plain %+v %v", i, d, fc, fok, pc, pok)
		}
	}
	if got := filtered.Tier(id); got != TierReduced {
		t.Fatalf("tier = %s, want reduced", got)
	}
}

func TestLODDirtyFilterSkipsInsideBand(t *testing.T) {
	lod := NewLODCoordinator(testProfiles(), 5)
	id := ecs.EntityID(4)
	lod.UpdateTier(id, CategoryOther, 90*90)
	if _, ok := lod.UpdateTier(id, CategoryOther, 93*93); ok {
		t.Fatal("sub-delta move inside the band changed tier")
	}
	if st, _ := lod.states.Get(id); st.lastDist != 90 {
		t.Fatalf("skipped evaluation recorded distance %v", st.lastDist)
	}
	// 108 -> 112 moves less than the delta but leaves the band.
	lod.UpdateTier(id, CategoryOther, 108*108)
	ch, ok := lod.UpdateTier(id, CategoryOther, 112*112)
	if !ok || ch.From != TierFull || ch.To != TierReduced {
		t.Fatalf("band exit: %+v %v", ch, ok)
	}
}

func TestLODRemove(t *testing.T) {
	lod := NewLODCoordinator(testProfiles(), 0)
	lod.UpdateTier(4, CategoryVehicle, 0)
	lod.Remove(4)
	if lod.Tier(4) != TierUnassigned || lod.Len() != 0 {
		t.Fatal("state kept after remove")
	}
}

func TestTierTableClassify(t *testing.T) {
	table := TierTable{Bounds: [NumTiers - 1]float32{100, 250, 600}}
	cases := map[float32]Tier{0: TierFull, 99.9: TierFull, 100: TierReduced, 249: TierReduced, 250: TierMinimal, 600: TierHidden, 1e6: TierHidden}
	for d, want := range cases {
		if got := table.Classify(d); got != want {
			t.Errorf("Classify(%v) = %s, want %s", d, got, want)
		}
	}
}
