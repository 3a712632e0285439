// Package notification talks to the remote notification service: lending
// events are pushed to it and an account's notifications are read back.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"library_management/pkg/circuitbreaker"
	"library_management/pkg/queue"
)

type EventType string

const (
	EventReserved    EventType = "RESERVED"
	EventCheckedOut  EventType = "CHECKED_OUT"
	EventReturned    EventType = "RETURNED"
	EventCancelled   EventType = "CANCELLED"
	EventFineCreated EventType = "FINE_CREATED"
)

type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	AccountID string    `json:"accountId"`
	ISBN      string    `json:"isbn,omitempty"`
	ItemCode  string    `json:"itemCode,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	basePath = "/library-notification/api/notifications"

	maxAttempts  = 5
	retryBase    = time.Second
	retryLimit   = time.Minute
	pollInterval = time.Second
)

var ErrUnavailable = errors.New("notification service unavailable")

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retries    *queue.Queue
	log        *slog.Logger
	now        func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.New(5, 60*time.Second, 30*time.Second),
		retries:    queue.NewQueue(),
		log:        log,
		now:        time.Now,
	}
}

// Publish queues ev for delivery by Flush and returns at once. Delivery
// problems are logged, never returned.
func (c *Client) Publish(_ context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("Failed to encode notification", "id", ev.ID, "error", err)
		return
	}
	c.retries.Enqueue(&queue.Delivery{ID: ev.ID, Payload: payload, RetryAt: c.now(), MaxAttempts: maxAttempts})
}

// Pending is the number of deliveries not sent yet.
func (c *Client) Pending() int {
	return c.retries.Size()
}

// Flush sends every delivery that is due. Failed ones are rescheduled
// with backoff until they run out of attempts.
func (c *Client) Flush(ctx context.Context) {
	for _, d := range c.retries.Due(c.now()) {
		err := c.send(ctx, d.Payload)
		if err == nil {
			c.log.Debug("Notification delivered", "id", d.ID, "attempt", d.Attempts+1)
			continue
		}
		if d.Reschedule(c.now(), retryBase, retryLimit) {
			c.log.Warn("Notification deferred", "id", d.ID, "attempt", d.Attempts, "error", err)
			c.retries.Enqueue(d)
			continue
		}
		c.log.Error("Notification dropped", "id", d.ID, "attempts", d.Attempts, "error", err)
	}
}

// Run flushes the queue until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Flush(ctx)
		}
	}
}

func (c *Client) send(ctx context.Context, payload []byte) error {
	return c.call(ctx, func(ctx context.Context) error {
		url := c.baseURL + basePath + "/v1/notifications"
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		request.Header.Set("Content-Type", "application/json;charset=UTF-8")

		response, err := c.httpClient.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()
		_, _ = io.Copy(io.Discard, response.Body)
		if response.StatusCode >= 300 {
			return fmt.Errorf("publish notification: status %d", response.StatusCode)
		}
		return nil
	})
}

// ByAccount lists the notifications the service holds for an account.
func (c *Client) ByAccount(ctx context.Context, accountID string) ([]Event, error) {
	var events []Event
	err := c.call(ctx, func(ctx context.Context) error {
		url := fmt.Sprintf("%s%s/v1/accounts/%s", c.baseURL, basePath, accountID)
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		request.Header.Set("Content-Type", "application/json;charset=UTF-8")

		response, err := c.httpClient.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()
		if response.StatusCode != http.StatusOK {
			return fmt.Errorf("notifications for account %s: status %d", accountID, response.StatusCode)
		}
		return json.NewDecoder(response.Body).Decode(&events)
	})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	var body string
	err := c.call(ctx, func(ctx context.Context) error {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+basePath+"/ping", nil)
		if err != nil {
			return err
		}
		response, err := c.httpClient.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()
		raw, err := io.ReadAll(response.Body)
		if err != nil {
			return err
		}
		if response.StatusCode != http.StatusOK {
			return fmt.Errorf("ping: status %d", response.StatusCode)
		}
		body = string(raw)
		return nil
	})
	return body, err
}

func (c *Client) call(ctx context.Context, fn func(context.Context) error) error {
	err := c.breaker.Execute(ctx, fn)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
