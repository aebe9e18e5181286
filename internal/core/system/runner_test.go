package system

import (
	"testing"
	"time"
)

type recorder struct {
	phase Phase
	name  string
	log   *[]string
}

func (r *recorder) Phase() Phase           { return r.phase }
func (r *recorder) Update(_ time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{PhasePhysics, "physics", &log})
	r.Register(&recorder{PhaseReference, "reference", &log})
	r.Register(&recorder{PhaseLOD, "lod-a", &log})
	r.Register(&recorder{PhaseLOD, "lod-b", &log})
	r.Register(&recorder{PhaseStream, "stream", &log})

	r.Tick(time.Millisecond)

	want := []string{"reference", "stream", "lod-a", "lod-b", "physics"}
	if len(log) != len(want) {
		t.Fatalf("ran %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("ran %v, want %v", log, want)
		}
	}
	if r.Frames() != 1 {
		t.Fatalf("frames = %d, want 1", r.Frames())
	}
}

func TestRunnerTickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{PhaseLOD, "lod", &log})
	r.Register(&recorder{PhasePhysics, "physics", &log})

	r.TickPhase(PhasePhysics, time.Millisecond)

	if len(log) != 1 || log[0] != "physics" {
		t.Fatalf("ran %v, want [physics]", log)
	}
	if r.Frames() != 0 {
		t.Fatalf("TickPhase must not count as a frame")
	}
}
