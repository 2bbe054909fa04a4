package readings

// New creates a store with one clean, zero-valued reading per name.
func New(names []string) *Store {
	s := &Store{
		readings: make([]Reading, len(names)),
		index:    make(map[string]int, len(names)),
	}
	for i, name := range names {
		s.readings[i] = Reading{Name: name}
		s.index[name] = i
	}
	return s
}

func (s *Store) Len() int {
	return len(s.readings)
}

// Update stores value at position i and marks it dirty, but only when it differs
// from the stored value. Returns whether the reading changed.
func (s *Store) Update(i int, value int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.readings) {
		return false
	}
	r := &s.readings[i]
	if r.Value == value {
		return false
	}
	r.Value = value
	r.Dirty = true
	return true
}

// GetAll returns a copy of every reading in registry order.
func (s *Store) GetAll() []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

func (s *Store) Get(name string) (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[name]
	if !ok {
		return Reading{}, false
	}
	return s.readings[i], true
}

// ClearDirty marks the named reading as forwarded.
func (s *Store) ClearDirty(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[name]
	if !ok {
		return false
	}
	s.readings[i].Dirty = false
	return true
}

// ForceAllDirty flags every reading for republishing without touching values.
func (s *Store) ForceAllDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.readings {
		s.readings[i].Dirty = true
	}
}

// Drain returns the dirty readings and clears their flags in one step.
func (s *Store) Drain() []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reading
	for i := range s.readings {
		if !s.readings[i].Dirty {
			continue
		}
		out = append(out, s.readings[i])
		s.readings[i].Dirty = false
	}
	return out
}
