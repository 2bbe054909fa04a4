package scheduler

import (
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
)

// Timer is a level-triggered interval timer. A new Timer is due immediately.
type Timer struct {
	Interval time.Duration
	last     time.Time
	fired    bool
}

// State is what the loop carries between passes.
type State struct {
	Update *Timer
	Resync *Timer
	// Every reading was flagged by a resync that has not been published yet.
	resyncPending bool
	// A valid telegram was decoded since the last drain.
	fresh bool
}

// Publication is a single reading ready to be sent to the broker.
type Publication struct {
	Topic   string `json:"topic"`
	Name    string `json:"name"`
	Value   int64  `json:"value"`
	Payload string `json:"payload"`
}

// Tick reports what one scheduler pass did.
type Tick struct {
	// Result sums the session polls of this pass. Valid is set when at least
	// one telegram passed its checksum.
	Result         telegram.Result
	ValidTelegrams int
	Publications   []Publication
	// Resynced marks the pass that published a full resync.
	Resynced bool
}
