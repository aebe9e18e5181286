package observer

import "github.com/citysim/worldcore/internal/core/event"

// Message is the JSON shape of every feed entry. Fields not relevant to a
// type are omitted.
type Message struct {
	Type       string `json:"type"`
	Frame      uint64 `json:"frame"`
	ID         uint64 `json:"id,omitempty"`
	Category   string `json:"category,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	X          *int32 `json:"x,omitempty"`
	Z          *int32 `json:"z,omitempty"`
	Generation uint32 `json:"generation,omitempty"`
	Entities   int    `json:"entities,omitempty"`
}

func tierMessage(e event.TierChanged) Message {
	return Message{
		Type:     "tier",
		Frame:    e.Frame,
		ID:       uint64(e.Change.ID),
		Category: e.Change.Category.String(),
		From:     e.Change.From.String(),
		To:       e.Change.To.String(),
	}
}

func residencyMessage(e event.ResidencyChanged) Message {
	return Message{
		Type:     "residency",
		Frame:    e.Frame,
		ID:       uint64(e.Change.ID),
		Category: e.Change.Category.String(),
		From:     e.Change.From.String(),
		To:       e.Change.To.String(),
	}
}

func regionLoadedMessage(e event.RegionLoaded) Message {
	x, z := e.Coord.X, e.Coord.Z
	return Message{
		Type:       "region_loaded",
		Frame:      e.Frame,
		X:          &x,
		Z:          &z,
		Generation: e.Generation,
		Entities:   len(e.Entities),
	}
}

func regionUnloadedMessage(e event.RegionUnloaded) Message {
	x, z := e.Coord.X, e.Coord.Z
	return Message{
		Type:       "region_unloaded",
		Frame:      e.Frame,
		X:          &x,
		Z:          &z,
		Generation: e.Generation,
		Entities:   len(e.Entities),
	}
}

func evictedMessage(e event.EntitiesEvicted) Message {
	return Message{
		Type:     "evicted",
		Frame:    e.Frame,
		Entities: len(e.Evicted),
	}
}
