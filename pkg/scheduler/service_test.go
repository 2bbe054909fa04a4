package scheduler

import (
	"bytes"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *readings.Store
	session *telegram.Session
	state   *State
}

func newFixture(t *testing.T, resync time.Duration) *fixture {
	t.Helper()
	reg := telegram.MustNewRegistry(telegram.DefaultFields())
	store := readings.New(reg.Names())
	log, _ := test.NewNullLogger()
	dec, err := telegram.NewDecoder(reg, store, log)
	require.NoError(t, err)
	return &fixture{
		store:   store,
		session: telegram.NewSession(dec, log),
		state:   NewState(time.Second, resync),
	}
}

func (f *fixture) poll(now time.Time, src telegram.Source) Tick {
	return Poll(now, src, f.session, f.store, f.state, "p1")
}

// bufSource is a source the test keeps appending to.
type bufSource struct {
	bytes.Buffer
}

func (b *bufSource) TryRead(p []byte) int {
	n, _ := b.Read(p)
	return n
}

func golden(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("../telegram/testdata/fluvius_dsmr5.txt")
	require.NoError(t, err)
	return data
}

func TestTimer(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	timer := NewTimer(time.Second)

	require.True(t, timer.Due(start))
	timer.Mark(start)
	require.False(t, timer.Due(start))
	require.False(t, timer.Due(start.Add(time.Second)))
	require.True(t, timer.Due(start.Add(time.Second+time.Millisecond)))
}

func TestTopic(t *testing.T) {
	require.Equal(t, "sensors/power/p1meter/actual_consumption", Topic("sensors/power/p1meter", "actual_consumption"))
	require.Equal(t, "p1/gas_meter_m3", Topic("p1/", "gas_meter_m3"))
}

func TestPoll_FirstPassPublishesEverything(t *testing.T) {
	f := newFixture(t, time.Hour)
	now := time.Now()

	tick := f.poll(now, telegram.NewSliceSource(golden(t)))
	require.True(t, tick.Resynced)
	require.True(t, tick.Result.Valid)
	require.Equal(t, 1, tick.ValidTelegrams)
	require.Len(t, tick.Publications, f.store.Len())

	byTopic := map[string]string{}
	for _, p := range tick.Publications {
		byTopic[p.Topic] = p.Payload
	}
	require.Equal(t, "378", byTopic["p1/actual_consumption"])
	require.Equal(t, "1", byTopic["p1/actual_tarif_group"])
	require.Equal(t, "0", byTopic["p1/actual_received"])
}

func TestPoll_DecodesBeforeUpdateIsDue(t *testing.T) {
	f := newFixture(t, time.Hour)
	now := time.Now()
	data := golden(t)

	f.poll(now, telegram.NewSliceSource(data))

	changed := bytes.Replace(data, []byte("1-0:1.7.0(00.378*kW)"), []byte("1-0:1.7.0(00.500*kW)"), 1)
	src := telegram.NewSliceSource(fixChecksum(t, changed))
	tick := f.poll(now.Add(500*time.Millisecond), src)
	require.Zero(t, src.Len())
	require.True(t, tick.Result.Valid)
	require.Empty(t, tick.Publications)
	r, _ := f.store.Get("actual_consumption")
	require.EqualValues(t, 500, r.Value)

	// The decoded telegram is published once the interval has passed.
	tick = f.poll(now.Add(2*time.Second), telegram.NewSliceSource(nil))
	require.False(t, tick.Resynced)
	require.Equal(t, []Publication{{Topic: "p1/actual_consumption", Name: "actual_consumption", Value: 500, Payload: "500"}}, tick.Publications)

	tick = f.poll(now.Add(4*time.Second), telegram.NewSliceSource(nil))
	require.Empty(t, tick.Publications)
}

func TestPoll_DrainsWholeBacklog(t *testing.T) {
	f := newFixture(t, time.Hour)
	data := golden(t)
	backlog := bytes.Repeat(data, 5)

	src := telegram.NewSliceSource(backlog)
	tick := f.poll(time.Now(), src)
	require.Equal(t, 5, tick.ValidTelegrams)
	require.Equal(t, 5*36, tick.Result.Lines)
	require.Zero(t, src.Len())
	require.Zero(t, f.session.Pending())
}

func TestPoll_ResyncRepublishes(t *testing.T) {
	f := newFixture(t, time.Hour)
	now := time.Now()
	data := golden(t)

	f.poll(now, telegram.NewSliceSource(data))

	later := now.Add(time.Hour + time.Second)
	tick := f.poll(later, telegram.NewSliceSource(data))
	require.True(t, tick.Resynced)
	require.Len(t, tick.Publications, f.store.Len())
}

func TestPoll_FullUpdateReportedWhenPublished(t *testing.T) {
	f := newFixture(t, 10*time.Second)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	data := golden(t)
	src := &bufSource{}

	// Telegrams arrive mid-second so resyncs never line up with a drain.
	var resynced []Tick
	for ms := 0; ms <= 25000; ms += 50 {
		if ms%1000 == 500 || ms == 0 {
			src.Write(data)
		}
		tick := f.poll(start.Add(time.Duration(ms)*time.Millisecond), src)
		if tick.Resynced {
			resynced = append(resynced, tick)
			continue
		}
		require.Empty(t, tick.Publications, "t=%dms", ms)
	}

	require.Len(t, resynced, 3)
	for _, tick := range resynced {
		require.Len(t, tick.Publications, f.store.Len())
	}
}

func TestPoll_IncompleteKeepsUpdateDue(t *testing.T) {
	f := newFixture(t, time.Hour)
	now := time.Now()
	data := golden(t)

	tick := f.poll(now, telegram.NewSliceSource(data[:400]))
	require.False(t, tick.Result.Complete)
	require.Empty(t, tick.Publications)
	require.True(t, f.state.Update.Due(now))

	tick = f.poll(now, telegram.NewSliceSource(data[400:]))
	require.True(t, tick.Result.Valid)
	require.True(t, tick.Resynced)
	require.Len(t, tick.Publications, f.store.Len())
}

func TestPoll_InvalidChecksumHoldsPublications(t *testing.T) {
	f := newFixture(t, time.Hour)
	now := time.Now()
	data := golden(t)
	bad := append([]byte{}, data[:len(data)-6]...)
	bad = append(bad, "0000\r\n"...)

	tick := f.poll(now, telegram.NewSliceSource(bad))
	require.True(t, tick.Result.Complete)
	require.False(t, tick.Result.Valid)
	require.Equal(t, 1, tick.Result.Invalid)
	require.Zero(t, tick.ValidTelegrams)
	require.Empty(t, tick.Publications)
	require.True(t, f.state.Update.Due(now))
}

// fixChecksum rewrites the 4 hex digits after '!' to match the body.
func fixChecksum(t *testing.T, data []byte) []byte {
	t.Helper()
	end := bytes.LastIndexByte(data, '!')
	require.Positive(t, end)
	out := append([]byte{}, data[:end+1]...)
	out = append(out, fmt.Sprintf("%04X", telegram.CRC16(0, data[bytes.IndexByte(data, '/'):end+1]))...)
	return append(out, data[end+5:]...)
}
