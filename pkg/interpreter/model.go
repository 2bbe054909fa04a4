package interpreter

import (
	"encoding/json"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/scheduler"
)

// MeterUpdate is what the interpreter API broadcasts over /ws after every
// valid telegram that changed at least one reading.
type MeterUpdate struct {
	Timestamp int64 `json:"timestamp"`
	// FullUpdate is set when all readings were republished.
	FullUpdate bool                    `json:"full_update"`
	Readings   []scheduler.Publication `json:"readings"`
}

func NewMeterUpdate(now time.Time, tick scheduler.Tick) *MeterUpdate {
	return &MeterUpdate{
		Timestamp:  now.Unix(),
		FullUpdate: tick.Resynced,
		Readings:   tick.Publications,
	}
}

func (u *MeterUpdate) ToJsonBytes() ([]byte, error) {
	return json.Marshal(u)
}

// MeterUpdateFromJsonBytes returns nil when b is not a meter update.
func MeterUpdateFromJsonBytes(b []byte) *MeterUpdate {
	var u MeterUpdate
	if err := json.Unmarshal(b, &u); err != nil {
		return nil
	}
	if u.Timestamp == 0 {
		return nil
	}
	return &u
}
