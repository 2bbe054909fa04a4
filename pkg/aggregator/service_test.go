package aggregator

import (
	"testing"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/internal/testutil"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/meterdb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func unix(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.Unix()
}

func TestTimeframeBounds(t *testing.T) {
	at := time.Date(2024, 2, 29, 13, 45, 12, 0, time.UTC)

	tests := []struct {
		tf    Timeframe
		start string
		end   string
	}{
		{Hourly, "2024-02-29T13:00:00Z", "2024-02-29T13:59:59Z"},
		{Daily, "2024-02-29T00:00:00Z", "2024-02-29T23:59:59Z"},
		{Monthly, "2024-02-01T00:00:00Z", "2024-02-29T23:59:59Z"},
	}
	for _, tt := range tests {
		t.Run(tt.tf.String(), func(t *testing.T) {
			start := tt.tf.Start(at)
			require.Equal(t, unix(tt.start), start)
			require.Equal(t, unix(tt.end), tt.tf.End(start))
		})
	}
}

func TestTimeframeStartUsesUTC(t *testing.T) {
	brussels := time.FixedZone("CET", 3600)
	at := time.Date(2024, 3, 1, 0, 30, 0, 0, brussels)
	require.Equal(t, unix("2024-02-29T23:00:00Z"), Hourly.Start(at))
	require.Equal(t, unix("2024-02-01T00:00:00Z"), Monthly.Start(at))
}

func TestAggregateHourly(t *testing.T) {
	m := testutil.NewMeterDB(t)
	hour := unix("2024-05-12T13:00:00Z")

	require.NoError(t, m.InsertReadingUpdates([]meterdb.ReadingUpdate{
		{Timestamp: hour + 1, Name: "actual_consumption", Value: 300},
		{Timestamp: hour + 60, Name: "actual_consumption", Value: 500},
		{Timestamp: hour + 120, Name: "actual_consumption", Value: 400},
		{Timestamp: hour + 30, Name: "instant_voltage_l1", Value: 234700},
		// next hour
		{Timestamp: hour + 3600, Name: "actual_consumption", Value: 9000},
	}))

	data, err := aggregate(m, Hourly, hour)
	require.NoError(t, err)
	require.Len(t, data.Rows, 2)

	consumption := data.Rows[0]
	require.Equal(t, "actual_consumption", consumption.Name)
	require.InDelta(t, 400.0, consumption.AvgValue, 0.001)
	require.EqualValues(t, 300, consumption.MinValue)
	require.EqualValues(t, 500, consumption.MaxValue)
	require.EqualValues(t, 3, consumption.SampleCount)

	var stored int
	require.NoError(t, m.DB().QueryRow("SELECT COUNT(*) FROM aggregate_hourly WHERE start_time = ?", hour).Scan(&stored))
	require.Equal(t, 2, stored)

	// Rerunning replaces rather than duplicates.
	_, err = aggregate(m, Hourly, hour)
	require.NoError(t, err)
	require.NoError(t, m.DB().QueryRow("SELECT COUNT(*) FROM aggregate_hourly").Scan(&stored))
	require.Equal(t, 2, stored)
}

func TestAggregateEmpty(t *testing.T) {
	m := testutil.NewMeterDB(t)
	data, err := aggregate(m, Daily, unix("2024-05-12T00:00:00Z"))
	require.NoError(t, err)
	require.Empty(t, data.Rows)
}

func TestSnapshotHourlyLooksBack(t *testing.T) {
	m := testutil.NewMeterDB(t)
	hour := unix("2024-05-12T13:00:00Z")

	require.NoError(t, m.InsertReadingUpdates([]meterdb.ReadingUpdate{
		// counter unchanged for hours
		{Timestamp: hour - 5*3600, Name: "received_tarif_1", Value: 142007},
		{Timestamp: hour + 10, Name: "actual_consumption", Value: 378},
		{Timestamp: hour + 20, Name: "actual_consumption", Value: 390},
		// too old
		{Timestamp: hour - 30*3600, Name: "gas_meter_m3", Value: 112384},
	}))

	n, err := snapshotHourly(m, hour)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	snaps, err := m.GetSnapshotsHourly("actual_consumption", hour, hour)
	require.NoError(t, err)
	require.Equal(t, []meterdb.SnapshotHourly{{HourStart: hour, Name: "actual_consumption", Value: 390}}, snaps)

	snaps, err = m.GetSnapshotsHourly("gas_meter_m3", 0, hour)
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestCleanupOldData(t *testing.T) {
	m := testutil.NewMeterDB(t)
	log, _ := test.NewNullLogger()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := unix("2024-01-15T10:00:00Z")

	require.NoError(t, m.InsertReadingUpdates([]meterdb.ReadingUpdate{
		{Timestamp: old, Name: "actual_consumption", Value: 100},
		{Timestamp: now.Unix() - 60, Name: "actual_consumption", Value: 200},
	}))

	// Nothing aggregated yet.
	removed, err := cleanupOldData(m, now, log)
	require.NoError(t, err)
	require.Zero(t, removed)

	_, err = aggregate(m, Hourly, Hourly.Start(now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = aggregate(m, Hourly, Hourly.Start(now))
	require.NoError(t, err)

	removed, err = cleanupOldData(m, now, log)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	n, err := m.CountReadingUpdates()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestAggregateAndCleanup_NewMonth(t *testing.T) {
	m := testutil.NewMeterDB(t)
	log, _ := test.NewNullLogger()
	now := time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC)

	require.NoError(t, m.InsertReadingUpdates([]meterdb.ReadingUpdate{
		{Timestamp: unix("2024-05-31T23:10:00Z"), Name: "actual_consumption", Value: 378},
		{Timestamp: unix("2024-05-02T08:00:00Z"), Name: "actual_consumption", Value: 122},
	}))

	require.NoError(t, AggregateAndCleanup(m, now, log))

	for table, want := range map[string]int{
		"aggregate_hourly":  1,
		"aggregate_daily":   1,
		"aggregate_monthly": 1,
		"snapshot_hourly":   1,
	} {
		var n int
		require.NoError(t, m.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		require.Equal(t, want, n, table)
	}

	var samples int
	require.NoError(t, m.DB().QueryRow("SELECT sample_count FROM aggregate_monthly").Scan(&samples))
	require.Equal(t, 2, samples)
}
