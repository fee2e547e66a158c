package engine

// OutputStore holds the values produced by completed actions during one
// plan run. It is seeded from the session's completion ledger before the
// first action executes and written to as actions succeed. A run is
// single-threaded, so the store is not synchronized.
type OutputStore struct {
	values map[string]any
}

func NewOutputStore() *OutputStore {
	return &OutputStore{values: make(map[string]any)}
}

func (s *OutputStore) Set(key string, value any) {
	if key == "" {
		return
	}
	s.values[key] = value
}

func (s *OutputStore) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *OutputStore) Len() int { return len(s.values) }
