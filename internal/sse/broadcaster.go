// Package sse streams session snapshots to browsers and tools over Server-Sent Events.
package sse

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// WriteTimeout bounds a single write so a stalled client cannot hold up the others.
const WriteTimeout = 2 * time.Second

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Client is one connected event stream.
type Client struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	once    sync.Once
	ID      string
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Broadcaster fans events out to every connected client.
type Broadcaster struct {
	clients map[string]*Client
	initial func() (string, any)
	nextID  int
	eventID uint64
	mu      sync.RWMutex
}

// NewBroadcaster creates a broadcaster. When initial is non-nil, every new client
// first receives the event it returns, so late joiners start from current state.
func NewBroadcaster(initial func() (event string, data any)) *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
		initial: initial,
	}
}

// AddClient registers w as a stream.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	b.mu.Lock()
	b.nextID++
	c := &Client{
		ID:      "client-" + strconv.Itoa(b.nextID),
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}
	b.clients[c.ID] = c
	n := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", c.ID).Int("totalClients", n).Msg("SSE client connected")
	return c, nil
}

// RemoveClient unregisters c.
func (b *Broadcaster) RemoveClient(c *Client) {
	b.mu.Lock()
	delete(b.clients, c.ID)
	n := len(b.clients)
	b.mu.Unlock()

	c.close()
	log.Debug().Str("clientId", c.ID).Int("totalClients", n).Msg("SSE client disconnected")
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish sends a named event to every client. Clients whose write fails or
// times out are dropped.
func (b *Broadcaster) Publish(event string, data any) {
	b.mu.Lock()
	b.eventID++
	id := b.eventID
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	if len(clients) == 0 {
		return
	}
	frame, err := encode(id, event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal SSE data")
		return
	}

	var (
		wg   sync.WaitGroup
		dead = make(chan *Client, len(clients))
	)
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if !b.write(c, frame) {
				dead <- c
			}
		}(c)
	}
	wg.Wait()
	close(dead)

	for c := range dead {
		b.RemoveClient(c)
	}
}

// write delivers frame to c within WriteTimeout.
func (b *Broadcaster) write(c *Client, frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	result := make(chan error, 1)
	go func() {
		_, err := c.writer.Write(frame)
		if err == nil {
			c.flusher.Flush()
		}
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			log.Debug().Err(err).Str("clientId", c.ID).Msg("Failed to write to SSE client")
			return false
		}
		return true
	case <-time.After(WriteTimeout):
		log.Warn().Str("clientId", c.ID).Dur("timeout", WriteTimeout).Msg("SSE write timed out")
		return false
	case <-c.done:
		return true
	}
}

// ServeHTTP streams events until the request context ends.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, ErrStreamingUnsupported.Error(), http.StatusInternalServerError)
		return
	}

	// The initial frame goes out before registration so it never races a Publish.
	if b.initial != nil {
		event, data := b.initial()
		frame, err := encode(0, event, data)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal initial SSE event")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		w.(http.Flusher).Flush()
	}

	c, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(c)

	select {
	case <-r.Context().Done():
	case <-c.done:
	}
}

// encode renders one SSE frame. An id of zero is omitted.
func encode(id uint64, event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if id > 0 {
		fmt.Fprintf(&buf, "id: %d\n", id)
	}
	if event != "" {
		fmt.Fprintf(&buf, "event: %s\n", event)
	}
	fmt.Fprintf(&buf, "data: %s\n\n", payload)
	return buf.Bytes(), nil
}
