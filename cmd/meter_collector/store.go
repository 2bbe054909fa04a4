package main

import (
	"github.com/NotCoffee418/p1_meter_bridge/pkg/interpreter"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/meterdb"
)

func toReadingUpdates(update *interpreter.MeterUpdate) []meterdb.ReadingUpdate {
	if update == nil {
		return nil
	}
	rows := make([]meterdb.ReadingUpdate, 0, len(update.Readings))
	for _, r := range update.Readings {
		rows = append(rows, meterdb.ReadingUpdate{
			Timestamp:  update.Timestamp,
			Name:       r.Name,
			Value:      r.Value,
			FullUpdate: update.FullUpdate,
		})
	}
	return rows
}

func storeUpdate(db *meterdb.MeterDB, update *interpreter.MeterUpdate) error {
	rows := toReadingUpdates(update)
	if len(rows) == 0 {
		return nil
	}
	return db.InsertReadingUpdates(rows)
}
