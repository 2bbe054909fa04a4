package main

import (
	"context"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/interpreter"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/publisher"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/scheduler"
	"github.com/sirupsen/logrus"
)

type broadcaster interface {
	Broadcast(update *interpreter.MeterUpdate)
}

// forwarder hands publications to websocket clients and the broker on its own
// goroutine so slow consumers never hold up the serial reader.
type forwarder struct {
	ticks chan scheduler.Tick
	hub   broadcaster
	pub   publisher.Publisher
	log   logrus.FieldLogger
}

// pub may be nil when MQTT is disabled.
func newForwarder(size int, hub broadcaster, pub publisher.Publisher, log logrus.FieldLogger) *forwarder {
	return &forwarder{
		ticks: make(chan scheduler.Tick, size),
		hub:   hub,
		pub:   pub,
		log:   log,
	}
}

// offer queues tick without blocking. It reports false when the queue is full
// and the tick was dropped.
func (f *forwarder) offer(tick scheduler.Tick) bool {
	select {
	case f.ticks <- tick:
		return true
	default:
		f.log.Warnf("forwarding fell behind, dropped %d publications", len(tick.Publications))
		return false
	}
}

func (f *forwarder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-f.ticks:
			f.hub.Broadcast(interpreter.NewMeterUpdate(time.Now(), tick))
			if f.pub == nil {
				continue
			}
			if err := f.pub.Publish(tick.Publications); err != nil {
				f.log.WithError(err).Warn("failed to publish readings")
			}
		}
	}
}
