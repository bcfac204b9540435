package sse

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// BroadcasterSuite is a test suite for Broadcaster operations.
type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster(nil)
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

// mockResponseWriter implements http.ResponseWriter and http.Flusher for testing.
type mockResponseWriter struct {
	header  http.Header
	body    strings.Builder
	failErr error
	mu      sync.Mutex
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{header: make(http.Header)}
}

func (m *mockResponseWriter) Header() http.Header { return m.header }
func (m *mockResponseWriter) WriteHeader(int)     {}
func (m *mockResponseWriter) Flush()              {}

func (m *mockResponseWriter) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	return m.body.Write(data)
}

func (m *mockResponseWriter) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body.String()
}

// plainWriter cannot flush.
type plainWriter struct{ http.ResponseWriter }

// TestAddRemoveClient tests client registration.
func (s *BroadcasterSuite) TestAddRemoveClient() {
	c, err := s.broadcaster.AddClient(newMockResponseWriter())
	s.Require().NoError(err)
	s.NotEmpty(c.ID)
	s.Equal(1, s.broadcaster.ClientCount())

	s.broadcaster.RemoveClient(c)
	s.Equal(0, s.broadcaster.ClientCount())

	select {
	case <-c.done:
	default:
		s.Fail("done channel should be closed")
	}

	// Removing twice is harmless.
	s.broadcaster.RemoveClient(c)
}

// TestAddClientRequiresFlusher tests writers that cannot stream are refused.
func (s *BroadcasterSuite) TestAddClientRequiresFlusher() {
	_, err := s.broadcaster.AddClient(plainWriter{httptest.NewRecorder()})
	s.ErrorIs(err, ErrStreamingUnsupported)
}

// TestPublish tests every client receives a framed event.
func (s *BroadcasterSuite) TestPublish() {
	writers := make([]*mockResponseWriter, 3)
	for i := range writers {
		writers[i] = newMockResponseWriter()
		_, err := s.broadcaster.AddClient(writers[i])
		s.Require().NoError(err)
	}

	s.broadcaster.Publish("snapshot", map[string]any{"status": "loading", "version": 2})

	for i, w := range writers {
		body := w.String()
		s.Contains(body, "id: 1\n", "client %d", i)
		s.Contains(body, "event: snapshot\n", "client %d", i)
		s.Contains(body, `"status":"loading"`, "client %d", i)
		s.True(strings.HasSuffix(body, "\n\n"), "client %d", i)
	}
}

// TestPublishDropsFailingClients tests broken streams are removed.
func (s *BroadcasterSuite) TestPublishDropsFailingClients() {
	good := newMockResponseWriter()
	bad := newMockResponseWriter()
	bad.failErr = errors.New("broken pipe")

	_, err := s.broadcaster.AddClient(good)
	s.Require().NoError(err)
	_, err = s.broadcaster.AddClient(bad)
	s.Require().NoError(err)

	s.broadcaster.Publish("snapshot", map[string]int{"version": 1})

	s.Equal(1, s.broadcaster.ClientCount())
	s.Contains(good.String(), "data:")
}

// TestPublishNoClients tests publishing with nobody listening.
func (s *BroadcasterSuite) TestPublishNoClients() {
	s.NotPanics(func() {
		s.broadcaster.Publish("snapshot", map[string]string{"status": "idle"})
	})
}

// TestPublishUnmarshalable tests bad payloads are logged and skipped.
func (s *BroadcasterSuite) TestPublishUnmarshalable() {
	w := newMockResponseWriter()
	_, err := s.broadcaster.AddClient(w)
	s.Require().NoError(err)

	s.broadcaster.Publish("snapshot", make(chan int))
	s.Empty(w.String())
	s.Equal(1, s.broadcaster.ClientCount())
}

func TestEncode(t *testing.T) {
	frame, err := encode(0, "", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "data: [\"a\"]\n\n", string(frame))

	frame, err = encode(7, "snapshot", map[string]int{"version": 3})
	require.NoError(t, err)
	assert.Equal(t, "id: 7\nevent: snapshot\ndata: {\"version\":3}\n\n", string(frame))
}

func TestServeHTTPSendsInitialEvent(t *testing.T) {
	b := NewBroadcaster(func() (string, any) {
		return "snapshot", map[string]any{"status": "idle", "version": 0}
	})
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: snapshot\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"status":"idle"`)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.Publish("snapshot", map[string]any{"status": "loading", "version": 1})
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "id: 1\n", line)

	cancel()
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConcurrentPublish(t *testing.T) {
	b := NewBroadcaster(nil)
	for i := 0; i < 10; i++ {
		_, err := b.AddClient(newMockResponseWriter())
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Publish("snapshot", map[string]int{"version": i})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, b.ClientCount())
}
