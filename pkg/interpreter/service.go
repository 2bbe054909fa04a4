package interpreter

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var ErrMaxRetries = errors.New("max connection retries reached")

type ListenerOptions struct {
	Host       string
	TLSEnabled bool
	// Defaults: 10 retries, 2s base delay doubling up to 60s
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	// Expect message every second; a silent connection is dropped after this
	ReadTimeout time.Duration
}

func (o *ListenerOptions) setDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 10
	}
	if o.BaseRetryDelay <= 0 {
		o.BaseRetryDelay = 2 * time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 60 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
}

func (o *ListenerOptions) url() url.URL {
	scheme := "ws"
	if o.TLSEnabled {
		scheme = "wss"
	}
	return url.URL{Scheme: scheme, Host: o.Host, Path: "/ws"}
}

// Manage websocket connection and call funcToCall for each update.
// Returns nil when ctx is cancelled and ErrMaxRetries when the API stays unreachable.
func StartListener(ctx context.Context, opts ListenerOptions, funcToCall func(update *MeterUpdate), log logrus.FieldLogger) error {
	opts.setDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "listener")

	u := opts.url()
	retryCount := 0

	for {
		// Calculate retry delay with exponential backoff
		if retryCount > 0 {
			retryDelay := time.Duration(1<<(retryCount-1)) * opts.BaseRetryDelay
			if retryDelay > opts.MaxRetryDelay {
				retryDelay = opts.MaxRetryDelay
			}
			log.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, opts.MaxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				log.Info("Shutdown requested during retry wait")
				return nil
			}
		}

		log.Infof("Connecting to %s", u.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("Connection failed")
			retryCount++
			if retryCount >= opts.MaxRetries {
				log.Errorf("Max retries (%d) reached. Giving up.", opts.MaxRetries)
				return ErrMaxRetries
			}
			continue
		}

		log.Info("Connected! Accepting meter updates.")

		// Reset retry count on successful connection
		retryCount = 0

		// Handle the connection until it breaks or we're cancelled
		connectionBroken := handleConnection(ctx, c, opts.ReadTimeout, funcToCall, log)
		c.Close()

		if !connectionBroken {
			return nil
		}

		log.Info("Connection lost, will retry...")
		retryCount = 1
	}
}

func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	readTimeout time.Duration,
	funcToCall func(update *MeterUpdate),
	log logrus.FieldLogger,
) bool {
	done := make(chan struct{})

	// Set read deadline to detect dead connections
	c.SetReadDeadline(time.Now().Add(readTimeout))

	// The API pings while readings are unchanged, so a ping counts as traffic.
	c.SetPingHandler(func(appData string) error {
		c.SetReadDeadline(time.Now().Add(readTimeout))
		err := c.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	// Goroutine to read messages
	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Warn("WebSocket error")
				} else {
					log.WithError(err).Debug("Connection closed")
				}
				return
			}

			// Reset read deadline on successful message
			c.SetReadDeadline(time.Now().Add(readTimeout))

			if messageType != websocket.TextMessage {
				log.Debugf("Received unexpected message type: %d", messageType)
				continue
			}
			if update := MeterUpdateFromJsonBytes(message); update != nil {
				funcToCall(update)
			} else {
				log.Warnf("Failed to parse meter update: %s", string(message))
			}
		}
	}()

	select {
	case <-done:
		// Connection broke
		return true
	case <-ctx.Done():
		log.Info("Shutdown requested, closing connection...")

		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.WithError(err).Debug("Error sending close message")
		}

		// Wait for close confirmation or timeout
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return false
	}
}
