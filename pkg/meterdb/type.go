package meterdb

import "database/sql"

type MeterDB struct {
	db *sql.DB
}

// ReadingUpdate is one reading value as received from the interpreter API.
type ReadingUpdate struct {
	Timestamp int64  `db:"timestamp"`
	Name      string `db:"name"`
	Value     int64  `db:"value"`
	// Set when the value was republished by a full update rather than changed.
	FullUpdate bool `db:"full_update"`
}

// Snapshot models - retained meter readings
type SnapshotHourly struct {
	HourStart int64  `db:"hour_start"`
	Name      string `db:"name"`
	Value     int64  `db:"value"`
}

// Aggregate models - statistics over a timeframe
// Use timeframe specified tables instead of this directly
type AggregateTable struct {
	StartTime   int64   `db:"start_time"`
	Name        string  `db:"name"`
	AvgValue    float64 `db:"avg_value"`
	MinValue    int64   `db:"min_value"`
	MaxValue    int64   `db:"max_value"`
	SampleCount uint32  `db:"sample_count"`
}

type AggregateHourly = AggregateTable
type AggregateDaily = AggregateTable
type AggregateMonthly = AggregateTable
