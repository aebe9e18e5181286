package ecs

// World owns the entity pool and the component registry. Entities leaving
// the simulation are queued with MarkForDestruction and released in bulk by
// the cleanup phase, so every system earlier in the frame still sees a
// consistent set of component stores.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID { return w.pool.Create() }

func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }

func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// PendingDestruction reports how many entities wait for the next flush.
func (w *World) PendingDestruction() int { return len(w.destroyQueue) }

// FlushDestroyQueue drops component state for every queued entity and
// releases its ID. Returns the number of IDs actually released.
func (w *World) FlushDestroyQueue() int {
	released := 0
	for _, id := range w.destroyQueue {
		w.registry.RemoveAll(id)
		if w.pool.Release(id) {
			released++
		}
	}
	w.destroyQueue = w.destroyQueue[:0]
	return released
}
