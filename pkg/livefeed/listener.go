package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/entities"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var ErrMaxRetries = errors.New("livefeed: max connection retries reached")

const (
	pingInterval = 30 * time.Second
	// no traffic at all for this long means the connection is dead
	readTimeout = 3 * pingInterval
)

type listenerConfig struct {
	maxRetries     int
	baseRetryDelay time.Duration
	maxRetryDelay  time.Duration
}

type ListenerOption func(*listenerConfig)

// WithRetry sets the reconnect attempts and exponential backoff bounds.
func WithRetry(maxRetries int, baseDelay, maxDelay time.Duration) ListenerOption {
	return func(c *listenerConfig) {
		c.maxRetries = maxRetries
		c.baseRetryDelay = baseDelay
		c.maxRetryDelay = maxDelay
	}
}

// FeedURL is the websocket URL of a collector's live feed.
func FeedURL(host string, tlsEnabled bool) string {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	if tlsEnabled {
		u.Scheme = "wss"
	}
	return u.String()
}

// StartListener subscribes to the feed at feedURL and calls fn with every
// sensor state list received. Lost connections are retried with exponential
// backoff. Returns nil once ctx is done, or ErrMaxRetries.
func StartListener(ctx context.Context, feedURL string, fn func([]entities.SensorState), opts ...ListenerOption) error {
	cfg := listenerConfig{
		maxRetries:     10,
		baseRetryDelay: 2 * time.Second,
		maxRetryDelay:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	retryCount := 0
	for {
		if retryCount > 0 {
			retryDelay := time.Duration(1<<(retryCount-1)) * cfg.baseRetryDelay
			if retryDelay > cfg.maxRetryDelay {
				retryDelay = cfg.maxRetryDelay
			}
			log.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, cfg.maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		log.Infof("Connecting to %s", feedURL)
		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, feedURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warnf("Connection failed: %v", err)
			retryCount++
			if retryCount >= cfg.maxRetries {
				log.Errorf("Max retries (%d) reached. Giving up.", cfg.maxRetries)
				return ErrMaxRetries
			}
			continue
		}

		log.Info("Connected! Accepting sensor updates.")
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, fn)
		c.Close()
		if !connectionBroken {
			return nil
		}
		log.Warn("Connection lost, will retry...")
		retryCount++
	}
}

// handleConnection reads until the connection breaks (true) or ctx is done (false).
func handleConnection(ctx context.Context, c *websocket.Conn, fn func([]entities.SensorState)) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(readTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warnf("WebSocket error: %v", err)
				} else {
					log.Debugf("Connection closed: %v", err)
				}
				return
			}
			c.SetReadDeadline(time.Now().Add(readTimeout))

			if messageType != websocket.TextMessage {
				log.Debugf("Received unexpected message type: %d", messageType)
				continue
			}
			var states []entities.SensorState
			if err := json.Unmarshal(message, &states); err != nil {
				log.Warnf("Failed to parse sensor states: %s", string(message))
				continue
			}
			fn(states)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Debugf("Failed to send ping: %v", err)
			}
		case <-ctx.Done():
			err := c.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			if err != nil {
				log.Debugf("Error sending close message: %v", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
