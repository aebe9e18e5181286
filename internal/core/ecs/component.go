package ecs

// Removable is implemented by every component store so that releasing an
// entity can drop its state everywhere in one sweep.
type Removable interface {
	Remove(id EntityID)
}

// Store is a typed, map-backed component store. Values are held by pointer so
// systems mutate per-entity state in place.
type Store[T any] struct {
	data map[EntityID]*T
}

func NewStore[T any](capacity int) *Store[T] {
	return &Store[T]{data: make(map[EntityID]*T, capacity)}
}

func (s *Store[T]) Set(id EntityID, c *T) { s.data[id] = c }

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) { delete(s.data, id) }

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int { return len(s.data) }

// Each visits every component. Iteration order is unspecified.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}
