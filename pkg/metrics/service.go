package metrics

import (
	"sync"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/esmutils"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/scheduler"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	readingValue = prometheus.NewDesc(
		"p1_reading",
		"Last decoded value of a telegram field, in the unit sent by the meter.",
		[]string{"name", "code"}, nil,
	)
	readingRaw = prometheus.NewDesc(
		"p1_reading_raw",
		"Last decoded value of a telegram field as published.",
		[]string{"name"}, nil,
	)
	telegramsTotal = prometheus.NewDesc(
		"p1_telegrams_total",
		"Completed telegrams by checksum result.",
		[]string{"result"}, nil,
	)
	linesTotal = prometheus.NewDesc(
		"p1_lines_total",
		"Telegram lines decoded.",
		nil, nil,
	)
	publicationsTotal = prometheus.NewDesc(
		"p1_publications_total",
		"Readings handed to the publisher.",
		nil, nil,
	)
	fullUpdatesTotal = prometheus.NewDesc(
		"p1_full_updates_total",
		"Full republishes of every reading.",
		nil, nil,
	)
	droppedBytes = prometheus.NewDesc(
		"p1_dropped_bytes_total",
		"Serial bytes dropped because decoding fell behind.",
		nil, nil,
	)
)

type Collector struct {
	fields  []telegram.FieldDefinition
	latest  func() []readings.Reading
	dropped func() uint64

	mu           sync.Mutex
	valid        uint64
	invalid      uint64
	lines        uint64
	publications uint64
	fullUpdates  uint64
}

// NewCollector exposes the readings returned by latest, in registry order.
// dropped may be nil.
func NewCollector(registry *telegram.Registry, latest func() []readings.Reading, dropped func() uint64, reg prometheus.Registerer) *Collector {
	c := &Collector{
		fields:  registry.Fields(),
		latest:  latest,
		dropped: dropped,
	}
	if reg != nil {
		reg.MustRegister(c)
	}
	return c
}

// Observe counts the outcome of one scheduler pass.
func (c *Collector) Observe(tick scheduler.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines += uint64(tick.Result.Lines)
	c.publications += uint64(len(tick.Publications))
	if tick.Resynced {
		c.fullUpdates++
	}
	c.valid += uint64(tick.ValidTelegrams)
	c.invalid += uint64(tick.Result.Invalid)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	rs := c.latest()
	for i, r := range rs {
		if i >= len(c.fields) || c.fields[i].Name != r.Name {
			continue
		}
		f := c.fields[i]
		value := esmutils.ScaledToUnit(r.Value, f.EndChar == telegram.UnitChar)
		ch <- prometheus.MustNewConstMetric(readingValue, prometheus.GaugeValue, value, r.Name, f.Code)
		ch <- prometheus.MustNewConstMetric(readingRaw, prometheus.GaugeValue, float64(r.Value), r.Name)
	}

	c.mu.Lock()
	ch <- prometheus.MustNewConstMetric(telegramsTotal, prometheus.CounterValue, float64(c.valid), "valid")
	ch <- prometheus.MustNewConstMetric(telegramsTotal, prometheus.CounterValue, float64(c.invalid), "invalid")
	ch <- prometheus.MustNewConstMetric(linesTotal, prometheus.CounterValue, float64(c.lines))
	ch <- prometheus.MustNewConstMetric(publicationsTotal, prometheus.CounterValue, float64(c.publications))
	ch <- prometheus.MustNewConstMetric(fullUpdatesTotal, prometheus.CounterValue, float64(c.fullUpdates))
	c.mu.Unlock()

	var dropped uint64
	if c.dropped != nil {
		dropped = c.dropped()
	}
	ch <- prometheus.MustNewConstMetric(droppedBytes, prometheus.CounterValue, float64(dropped))
}
