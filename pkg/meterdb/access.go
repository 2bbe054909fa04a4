package meterdb

import (
	"database/sql"
	"errors"
	"fmt"
)

// InsertReadingUpdates stores all readings of one update in a single transaction.
func (m *MeterDB) InsertReadingUpdates(updates []ReadingUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO reading_updates (timestamp, name, value, full_update) " +
			"VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.Exec(u.Timestamp, u.Name, u.Value, u.FullUpdate); err != nil {
			return fmt.Errorf("failed to insert %s: %w", u.Name, err)
		}
	}
	return tx.Commit()
}

// GetLastValue returns the most recent value of name within [from, to].
func (m *MeterDB) GetLastValue(name string, from, to int64) (int64, bool, error) {
	var value int64
	err := m.db.QueryRow(`
		SELECT value
		FROM reading_updates
		WHERE name = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, name, from, to).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return value, true, nil
}

// GetReadingNames lists every reading name stored within [from, to].
func (m *MeterDB) GetReadingNames(from, to int64) ([]string, error) {
	rows, err := m.db.Query(`
		SELECT DISTINCT name
		FROM reading_updates
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY name
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (m *MeterDB) CountReadingUpdates() (int64, error) {
	var n int64
	err := m.db.QueryRow("SELECT COUNT(*) FROM reading_updates").Scan(&n)
	return n, err
}

func (m *MeterDB) GetSnapshotsHourly(name string, from, to int64) ([]SnapshotHourly, error) {
	rows, err := m.db.Query(`
		SELECT hour_start, name, value
		FROM snapshot_hourly
		WHERE name = ? AND hour_start >= ? AND hour_start <= ?
		ORDER BY hour_start
	`, name, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotHourly
	for rows.Next() {
		var s SnapshotHourly
		if err := rows.Scan(&s.HourStart, &s.Name, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
