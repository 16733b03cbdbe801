package surface

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"HibiscusGuard/internal/mapsync"
)

// markerEvent is one marker operation streamed to viewers.
type markerEvent struct {
	Op     string          `json:"op"` // add/update/remove
	ID     string          `json:"id"`
	Marker *mapsync.Marker `json:"marker,omitempty"`
}

type client struct {
	id   string
	ch   chan string
	done chan struct{}
}

// handle is the surface-side reference for one marker.
type handle struct {
	id string
}

// SSESurface renders the reconciled marker set as a server-sent-event
// stream. New viewers receive the full current marker set on connect,
// then incremental operations.
type SSESurface struct {
	mu      sync.RWMutex
	clients map[string]*client
	markers map[string]mapsync.Marker

	interval time.Duration
	retryMs  int
	nextID   int
}

// NewSSESurface creates an empty surface.
func NewSSESurface(pingInterval time.Duration) *SSESurface {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &SSESurface{
		clients:  make(map[string]*client),
		markers:  make(map[string]mapsync.Marker),
		interval: pingInterval,
		retryMs:  5000,
	}
}

// AddMarker implements mapsync.Surface.
func (s *SSESurface) AddMarker(id string, m mapsync.Marker) (mapsync.Handle, error) {
	s.mu.Lock()
	s.markers[id] = m
	s.mu.Unlock()
	s.broadcast(markerEvent{Op: "add", ID: id, Marker: &m})
	return &handle{id: id}, nil
}

// UpdateMarker implements mapsync.Surface. The marker moves in place;
// viewers keep their DOM node and only restyle it.
func (s *SSESurface) UpdateMarker(h mapsync.Handle, m mapsync.Marker) error {
	hd, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("foreign marker handle")
	}
	s.mu.Lock()
	s.markers[hd.id] = m
	s.mu.Unlock()
	s.broadcast(markerEvent{Op: "update", ID: hd.id, Marker: &m})
	return nil
}

// RemoveMarker implements mapsync.Surface.
func (s *SSESurface) RemoveMarker(h mapsync.Handle) error {
	hd, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("foreign marker handle")
	}
	s.mu.Lock()
	delete(s.markers, hd.id)
	s.mu.Unlock()
	s.broadcast(markerEvent{Op: "remove", ID: hd.id})
	return nil
}

// Markers returns the current marker set, for snapshot reads.
func (s *SSESurface) Markers() map[string]mapsync.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]mapsync.Marker, len(s.markers))
	for id, m := range s.markers {
		out[id] = m
	}
	return out
}

func (s *SSESurface) broadcast(ev markerEvent) {
	b, _ := json.Marshal(ev)
	msg := formatData(string(b))
	s.mu.RLock()
	for _, c := range s.clients {
		select {
		case c.ch <- msg:
		default:
			// 消费过慢的查看端丢帧，重连后会重放全量
		}
	}
	s.mu.RUnlock()
}

func formatData(s string) string { return fmt.Sprintf("data: %s\n\n", s) }

func (s *SSESurface) addClient() *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := &client{
		id:   fmt.Sprintf("viewer_%d", s.nextID),
		ch:   make(chan string, 64),
		done: make(chan struct{}),
	}
	s.clients[c.id] = c
	return c
}

func (s *SSESurface) removeClient(id string) {
	s.mu.Lock()
	if c, ok := s.clients[id]; ok {
		close(c.done)
		delete(s.clients, id)
	}
	s.mu.Unlock()
}

// Serve streams marker events to one viewer until it disconnects.
func (s *SSESurface) Serve(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprintf(c.Writer, "retry: %d\n\n", s.retryMs)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	viewer := s.addClient()
	defer s.removeClient(viewer.id)

	// 接入时重放当前全量标记
	for id, m := range s.Markers() {
		marker := m
		b, _ := json.Marshal(markerEvent{Op: "add", ID: id, Marker: &marker})
		fmt.Fprint(c.Writer, formatData(string(b)))
	}
	flusher.Flush()

	ping := time.NewTicker(s.interval)
	defer ping.Stop()

	for {
		select {
		case <-viewer.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-viewer.ch:
			c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
