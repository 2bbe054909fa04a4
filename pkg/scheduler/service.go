package scheduler

import (
	"strconv"
	"strings"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
)

func NewTimer(interval time.Duration) *Timer {
	return &Timer{Interval: interval}
}

// Due is true on the first call and afterwards once more than Interval has
// passed since the last Mark.
func (t *Timer) Due(now time.Time) bool {
	if !t.fired {
		return true
	}
	return now.Sub(t.last) > t.Interval
}

func (t *Timer) Mark(now time.Time) {
	t.last = now
	t.fired = true
}

// Topic joins the root topic and a reading name.
func Topic(root, name string) string {
	return strings.TrimRight(root, "/") + "/" + name
}

func NewState(updateInterval, resyncInterval time.Duration) *State {
	return &State{
		Update: NewTimer(updateInterval),
		Resync: NewTimer(resyncInterval),
	}
}

// Poll runs one pass of the main loop. Everything the source has buffered is
// decoded, so the store always holds the newest values. Once the update timer
// is due and a valid telegram came in since the last drain, dirty readings are
// drained into publications. Poll performs no I/O itself.
func Poll(now time.Time, src telegram.Source, session *telegram.Session, store *readings.Store,
	state *State, root string) Tick {
	var tick Tick

	if state.Resync.Due(now) {
		store.ForceAllDirty()
		state.Resync.Mark(now)
		state.resyncPending = true
	}

	for {
		res := session.Poll(src)
		tick.Result.Lines += res.Lines
		tick.Result.Updated += res.Updated
		tick.Result.Invalid += res.Invalid
		tick.Result.Complete = tick.Result.Complete || res.Complete
		if !res.Valid {
			break
		}
		tick.Result.Valid = true
		tick.ValidTelegrams++
	}
	if tick.ValidTelegrams > 0 {
		state.fresh = true
	}

	if !state.fresh || !state.Update.Due(now) {
		return tick
	}

	state.Update.Mark(now)
	state.fresh = false
	tick.Publications = Publications(store.Drain(), root)
	tick.Resynced = state.resyncPending
	state.resyncPending = false
	return tick
}

// Publications maps readings to broker messages in registry order.
func Publications(rs []readings.Reading, root string) []Publication {
	if len(rs) == 0 {
		return nil
	}
	out := make([]Publication, 0, len(rs))
	for _, r := range rs {
		out = append(out, Publication{
			Topic:   Topic(root, r.Name),
			Name:    r.Name,
			Value:   r.Value,
			Payload: strconv.FormatInt(r.Value, 10),
		})
	}
	return out
}
