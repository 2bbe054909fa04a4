package port_reader

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/scheduler"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("serial port not connected")

const (
	defaultPollInterval = 50 * time.Millisecond
	readChunkSize       = 256
	// Tolerance before we report error.
	maxConsecutiveErrors = 10
)

var retryDelay = time.Second

// Initialize a new P1Reader client.
func NewP1Reader(opts Options, session *telegram.Session, store *readings.Store, log logrus.FieldLogger) *P1Reader {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Open == nil {
		opts.Open = openSerial
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &P1Reader{
		opts:       opts,
		queue:      NewByteQueue(opts.QueueLimit),
		session:    session,
		store:      store,
		schedule:   scheduler.NewState(opts.UpdateInterval, opts.FullUpdateInterval),
		stopSignal: make(chan struct{}),
		log:        log.WithField("component", "port_reader"),
	}
}

// Start reading telegrams. Runs in goroutine.
// handleTick receives every scheduler pass that decoded lines or produced
// publications. handleError is called once when the reader gives up.
// Both run on the reader goroutine and should return quickly.
func (p *P1Reader) StartReading(
	handleTick func(tick scheduler.Tick),
	handleError func(error),
) {
	go func() {
		// Initialize the connection
		port, err := p.connect()
		if err != nil {
			handleError(err)
			return
		}

		pumpErr := make(chan error, 1)
		go p.pump(port, pumpErr)

		ticker := time.NewTicker(p.opts.PollInterval)
		defer ticker.Stop()
		var dropped uint64

		for {
			select {
			case <-p.stopSignal:
				p.log.Info("Stop signal received, disconnecting")
				p.disconnect()
				return

			case err := <-pumpErr:
				p.log.WithError(err).Error("stopping reader")
				p.disconnect()
				handleError(err)
				return

			case now := <-ticker.C:
				if d := p.queue.Dropped(); d != dropped {
					// The partial line before the gap belongs to a cut telegram.
					p.log.Warnf("decoding fell behind, %d bytes dropped", d-dropped)
					dropped = d
					p.session.Reset()
				}
				tick := scheduler.Poll(now, p.queue, p.session, p.store, p.schedule, p.opts.RootTopic)
				if tick.Resynced {
					p.log.Debug("full update published")
				}
				if tick.Result.Lines > 0 || len(tick.Publications) > 0 || tick.Resynced {
					handleTick(tick)
				}
			}
		}
	}()
}

func (p *P1Reader) StopReading() {
	p.stopOnce.Do(func() {
		close(p.stopSignal)
	})
	p.disconnect()
}

// GetLatestReadings returns the current value of every field.
func (p *P1Reader) GetLatestReadings() []readings.Reading {
	return p.store.GetAll()
}

// DroppedBytes reports bytes lost because decoding fell behind the port.
func (p *P1Reader) DroppedBytes() uint64 {
	return p.queue.Dropped()
}

func (p *P1Reader) stopped() bool {
	select {
	case <-p.stopSignal:
		return true
	default:
		return false
	}
}

// pump moves bytes from the port into the queue until the port fails.
func (p *P1Reader) pump(port io.Reader, errCh chan<- error) {
	buf := make([]byte, readChunkSize)
	consecutiveErrors := 0

	for {
		n, err := port.Read(buf)
		if n > 0 {
			p.queue.Write(buf[:n])
			consecutiveErrors = 0
		}
		if err == nil {
			continue
		}
		if p.stopped() {
			return
		}
		if errors.Is(err, io.EOF) {
			errCh <- fmt.Errorf("%w: %w", ErrNotConnected, err)
			return
		}

		consecutiveErrors++
		if consecutiveErrors >= maxConsecutiveErrors {
			errCh <- fmt.Errorf("too many consecutive read errors (%d): %w", consecutiveErrors, err)
			return
		}
		p.log.WithError(err).Warnf("Error reading serial port (%d/%d)", consecutiveErrors, maxConsecutiveErrors)
		time.Sleep(retryDelay)
	}
}

// Open the connection to the P1 port.
func (p *P1Reader) connect() (io.ReadWriteCloser, error) {
	port, err := p.opts.Open(p.opts.Port, p.opts.Baudrate)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	p.portMutex.Lock()
	p.serialPort = port
	p.portMutex.Unlock()
	p.log.Infof("Connected to P1 port on %s", p.opts.Port)
	return port, nil
}

func (p *P1Reader) disconnect() {
	p.portMutex.Lock()
	defer p.portMutex.Unlock()
	if p.serialPort != nil {
		p.serialPort.Close()
		p.serialPort = nil
		p.log.Info("Disconnected from P1 port")
	}
}

func openSerial(port string, baudrate uint) (io.ReadWriteCloser, error) {
	options := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}
	return serial.Open(options)
}
