package aggregator

import (
	"fmt"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/meterdb"
	"github.com/sirupsen/logrus"
)

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// roundToDayStart returns the Unix timestamp of the start of the day for the given time
func roundToDayStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// roundToMonthStart returns the Unix timestamp of the start of the month for the given time
func roundToMonthStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Unix()
}

// Start returns the start of the timeframe containing t.
func (tf Timeframe) Start(t time.Time) int64 {
	switch tf {
	case Daily:
		return roundToDayStart(t)
	case Monthly:
		return roundToMonthStart(t)
	default:
		return roundToHourStart(t)
	}
}

// End returns the last second of the timeframe starting at start.
func (tf Timeframe) End(start int64) int64 {
	t := time.Unix(start, 0).UTC()
	switch tf {
	case Daily:
		return t.AddDate(0, 0, 1).Unix() - 1
	case Monthly:
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC).Unix() - 1
	default:
		return t.Add(time.Hour).Unix() - 1
	}
}

func (tf Timeframe) table() string {
	return "aggregate_" + tf.String()
}

// aggregate computes per reading statistics over one timeframe and stores them.
func aggregate(m *meterdb.MeterDB, tf Timeframe, start int64) (*AggregateData, error) {
	end := tf.End(start)

	query := `
		SELECT
			name,
			AVG(value) as avg_value,
			MIN(value) as min_value,
			MAX(value) as max_value,
			COUNT(*) as count
		FROM reading_updates
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY name
		ORDER BY name
	`

	rows, err := m.DB().Query(query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data := &AggregateData{Timeframe: tf, StartTime: start, EndTime: end}
	for rows.Next() {
		row := meterdb.AggregateTable{StartTime: start}
		if err := rows.Scan(&row.Name, &row.AvgValue, &row.MinValue, &row.MaxValue, &row.SampleCount); err != nil {
			return nil, err
		}
		data.Rows = append(data.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Only insert if we have data
	if len(data.Rows) == 0 {
		return data, nil
	}

	insertQuery := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s
		(start_time, name, avg_value, min_value, max_value, sample_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tf.table())

	for _, row := range data.Rows {
		if _, err := m.DB().Exec(insertQuery, row.StartTime, row.Name, row.AvgValue, row.MinValue, row.MaxValue, row.SampleCount); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// snapshotHourly retains the last known value of every reading for one hour.
// Counters like received_tarif_1 only show up when they change, so the
// lookback reaches 24 hours before the end of the hour.
func snapshotHourly(m *meterdb.MeterDB, hourStart int64) (int, error) {
	hourEnd := Hourly.End(hourStart)
	lookbackStart := hourEnd - (24 * 3600)

	names, err := m.GetReadingNames(lookbackStart, hourEnd)
	if err != nil {
		return 0, err
	}

	insertQuery := `
		INSERT OR REPLACE INTO snapshot_hourly
		(hour_start, name, value)
		VALUES (?, ?, ?)
	`

	stored := 0
	for _, name := range names {
		value, ok, err := m.GetLastValue(name, lookbackStart, hourEnd)
		if err != nil {
			return stored, fmt.Errorf("last value of %s: %w", name, err)
		}
		if !ok {
			continue
		}
		if _, err := m.DB().Exec(insertQuery, hourStart, name, value); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// cleanupOldData removes raw updates older than 3 months if we have
// aggregated past that point.
func cleanupOldData(m *meterdb.MeterDB, now time.Time, log logrus.FieldLogger) (int64, error) {
	cutoff := now.UTC().AddDate(0, -3, 0).Unix()

	var lastAggregateHour *int64
	if err := m.DB().QueryRow("SELECT MAX(start_time) FROM aggregate_hourly").Scan(&lastAggregateHour); err != nil {
		return 0, err
	}
	// No aggregates yet, or not recent enough
	if lastAggregateHour == nil || *lastAggregateHour < cutoff {
		return 0, nil
	}

	res, err := m.DB().Exec("DELETE FROM reading_updates WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		log.Infof("Cleaned up %d reading updates older than %s", removed, time.Unix(cutoff, 0).UTC().Format(time.RFC3339))
	}
	return removed, nil
}

// AggregateAndCleanup performs all aggregation and cleanup tasks for the
// hour before now, and for the previous day and month when now starts a new one.
func AggregateAndCleanup(m *meterdb.MeterDB, now time.Time, log logrus.FieldLogger) error {
	now = now.UTC()

	// Aggregate the previous hour (current hour is still ongoing)
	hourStart := Hourly.Start(now.Add(-time.Hour))
	log.Debugf("Aggregating data for hour starting at %s", time.Unix(hourStart, 0).UTC().Format(time.RFC3339))

	if _, err := aggregate(m, Hourly, hourStart); err != nil {
		return fmt.Errorf("hourly aggregate: %w", err)
	}
	if _, err := snapshotHourly(m, hourStart); err != nil {
		return fmt.Errorf("hourly snapshot: %w", err)
	}

	// Aggregate the previous day if it's a new day
	if now.Hour() == 0 {
		dayStart := Daily.Start(now.AddDate(0, 0, -1))
		if _, err := aggregate(m, Daily, dayStart); err != nil {
			return fmt.Errorf("daily aggregate: %w", err)
		}
	}

	// Aggregate the previous month if it's a new month
	if now.Hour() == 0 && now.Day() == 1 {
		monthStart := Monthly.Start(now.AddDate(0, -1, 0))
		if _, err := aggregate(m, Monthly, monthStart); err != nil {
			return fmt.Errorf("monthly aggregate: %w", err)
		}
	}

	if _, err := cleanupOldData(m, now, log); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	log.Debug("Aggregation and cleanup completed successfully")
	return nil
}
