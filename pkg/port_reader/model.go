package port_reader

import (
	"io"
	"sync"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/scheduler"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
	"github.com/sirupsen/logrus"
)

type OpenFunc func(port string, baudrate uint) (io.ReadWriteCloser, error)

type Options struct {
	Port               string
	Baudrate           uint
	RootTopic          string
	UpdateInterval     time.Duration
	FullUpdateInterval time.Duration
	// How often the loop checks the queue for new bytes.
	PollInterval time.Duration
	QueueLimit   int
	// Open replaces the serial port opener.
	Open OpenFunc
}

type P1Reader struct {
	opts       Options
	serialPort io.ReadWriteCloser
	portMutex  sync.Mutex
	queue      *ByteQueue
	session    *telegram.Session
	store      *readings.Store
	schedule   *scheduler.State
	stopSignal chan struct{}
	stopOnce   sync.Once
	log        logrus.FieldLogger
}

// ByteQueue buffers bytes between the serial pump and the decode loop.
// When full, the oldest bytes are dropped.
type ByteQueue struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	dropped uint64
}
