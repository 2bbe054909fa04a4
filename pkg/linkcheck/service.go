package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/sirupsen/logrus"
)

var (
	ErrLinkDown      = errors.New("network link down")
	ErrNoPingReply   = errors.New("no response")
	ErrNotConfigured = errors.New("link check not configured")
)

const (
	defaultMaxFailures = 3
	settleDelay        = 5 * time.Second
)

// Watchdog pings a host on the network the meter reports to and tries to
// bring the wifi connection back up when it stops answering.
type Watchdog struct {
	host         string
	connectionID string
	interval     time.Duration
	maxFailures  int
	settle       time.Duration
	failures     int

	ping      func(host string) (bool, time.Duration, error)
	reconnect func(connectionID string) error
	log       logrus.FieldLogger
}

func NewWatchdog(host, connectionID string, interval time.Duration, log logrus.FieldLogger) *Watchdog {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watchdog{
		host:         host,
		connectionID: connectionID,
		interval:     interval,
		maxFailures:  defaultMaxFailures,
		settle:       settleDelay,
		ping:         ping,
		reconnect:    nmcliUp,
		log:          log.WithField("component", "linkcheck"),
	}
}

// IsConfigured reports whether there is a host to probe.
// This feature is optional, Empty values as config are acceptable.
func (w *Watchdog) IsConfigured() bool {
	return w.host != "" && w.interval > 0
}

// Check pings the host once and, when it does not answer, brings the
// connection up and pings again.
func (w *Watchdog) Check() error {
	if !w.IsConfigured() {
		return ErrNotConfigured
	}

	ok, rtt, err := w.ping(w.host)
	if ok && err == nil {
		w.log.WithField("rtt", rtt).Trace("link ok")
		return nil
	}
	w.log.WithError(err).Warnf("%s unreachable, reconnecting", w.host)

	if w.connectionID == "" {
		return fmt.Errorf("%w: %w", ErrLinkDown, err)
	}
	if err := w.reconnect(w.connectionID); err != nil {
		return fmt.Errorf("%w: %w", ErrLinkDown, err)
	}

	// Wait a bit for the connection to establish
	time.Sleep(w.settle)

	ok, _, err = w.ping(w.host)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLinkDown, err)
	}
	if !ok {
		return ErrLinkDown
	}
	w.log.Info("link restored")
	return nil
}

// Run checks the link every interval until ctx is done. After maxFailures
// failed checks in a row handleError is called and the count starts over.
func (w *Watchdog) Run(ctx context.Context, handleError func(error)) {
	if !w.IsConfigured() {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.step(); err != nil {
				handleError(err)
			}
		}
	}
}

func (w *Watchdog) step() error {
	err := w.Check()
	if err == nil {
		w.failures = 0
		return nil
	}

	w.failures++
	w.log.WithError(err).Warnf("link check failed (%d/%d)", w.failures, w.maxFailures)
	if w.failures < w.maxFailures {
		return nil
	}
	w.failures = 0
	return fmt.Errorf("link check failed %d times in a row: %w", w.maxFailures, err)
}

func nmcliUp(connectionID string) error {
	cmd := exec.Command("nmcli", "connection", "up", connectionID)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to bring up wifi connection: %w", err)
	}
	return nil
}

func ping(host string) (bool, time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, 0, err
	}

	pinger.Count = 1
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(false) // UDP-based, no root needed

	err = pinger.Run()
	if err != nil {
		return false, 0, err
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return true, stats.AvgRtt, nil
	}

	return false, 0, ErrNoPingReply
}
