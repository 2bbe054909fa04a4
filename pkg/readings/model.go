package readings

import "sync"

// Reading is the latest decoded value of one registered field.
// Dirty means Value has not been forwarded downstream yet.
type Reading struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	Dirty bool   `json:"dirty"`
}

// Store holds one Reading per registered field, in registry order.
type Store struct {
	mu       sync.Mutex
	readings []Reading
	index    map[string]int
}
