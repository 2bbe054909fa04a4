package readings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStartsClean(t *testing.T) {
	s := New([]string{"a", "b"})
	require.Equal(t, 2, s.Len())
	require.Equal(t, []Reading{{Name: "a"}, {Name: "b"}}, s.GetAll())
}

func TestUpdateOnlyDirtiesOnChange(t *testing.T) {
	s := New([]string{"a", "b"})

	require.False(t, s.Update(0, 0), "equal value must not dirty")
	r, _ := s.Get("a")
	require.False(t, r.Dirty)

	require.True(t, s.Update(0, 378))
	r, _ = s.Get("a")
	require.Equal(t, Reading{Name: "a", Value: 378, Dirty: true}, r)

	require.True(t, s.ClearDirty("a"))
	require.False(t, s.Update(0, 378))
	r, _ = s.Get("a")
	require.False(t, r.Dirty)
}

func TestUpdateOutOfRange(t *testing.T) {
	s := New([]string{"a"})
	require.False(t, s.Update(-1, 5))
	require.False(t, s.Update(1, 5))
}

func TestClearDirtyUnknown(t *testing.T) {
	s := New([]string{"a"})
	require.False(t, s.ClearDirty("nope"))
}

func TestForceAllDirtyKeepsValues(t *testing.T) {
	s := New([]string{"a", "b", "c"})
	s.Update(1, 42)
	s.ClearDirty("b")

	s.ForceAllDirty()
	for _, r := range s.GetAll() {
		require.True(t, r.Dirty, r.Name)
	}
	r, _ := s.Get("b")
	require.Equal(t, int64(42), r.Value)
}

func TestDrain(t *testing.T) {
	s := New([]string{"a", "b", "c"})
	s.Update(0, 1)
	s.Update(2, 3)

	drained := s.Drain()
	require.Equal(t, []Reading{
		{Name: "a", Value: 1, Dirty: true},
		{Name: "c", Value: 3, Dirty: true},
	}, drained)
	require.Empty(t, s.Drain())
}

func TestConcurrentResyncAndUpdateStayDirty(t *testing.T) {
	s := New([]string{"a"})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(v int64) {
			defer wg.Done()
			s.Update(0, v)
		}(int64(i + 1))
		go func() {
			defer wg.Done()
			s.ForceAllDirty()
		}()
	}
	wg.Wait()
	r, _ := s.Get("a")
	require.True(t, r.Dirty)
}
