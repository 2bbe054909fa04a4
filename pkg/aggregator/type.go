package aggregator

import "github.com/NotCoffee418/p1_meter_bridge/pkg/meterdb"

type Timeframe uint8

const (
	Hourly Timeframe = iota
	Daily
	Monthly
)

func (tf Timeframe) String() string {
	switch tf {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return "unknown"
	}
}

type AggregateData struct {
	Timeframe Timeframe
	StartTime int64
	EndTime   int64
	Rows      []meterdb.AggregateTable
}
