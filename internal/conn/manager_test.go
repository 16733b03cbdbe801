package conn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HibiscusGuard/pkg/errors"
)

func TestBackoffDelaySequence(t *testing.T) {
	base := time.Second
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	for attempt, expected := range want {
		assert.Equal(t, expected, BackoffDelay(base, attempt), "attempt %d", attempt)
	}
}

func TestBuildURL(t *testing.T) {
	got, err := buildURL("ws://example.com/ws/push", "tok123")
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/ws/push?token=tok123", got)

	got, err = buildURL("ws://example.com/ws/push", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/ws/push", got)
}

// pushServer 模拟服务端推送源
type pushServer struct {
	srv   *httptest.Server
	mu    sync.Mutex
	conns []*websocket.Conn
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{}
	upgrader := websocket.Upgrader{}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conns = append(ps.conns, ws)
		ps.mu.Unlock()
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pushServer) url() string {
	return "ws" + strings.TrimPrefix(ps.srv.URL, "http")
}

func (ps *pushServer) latest() *websocket.Conn {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.conns) == 0 {
		return nil
	}
	return ps.conns[len(ps.conns)-1]
}

func (ps *pushServer) connCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.conns)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.MaxAttempts = 3
	cfg.HandshakeTimeout = time.Second
	return cfg
}

func TestConnectDeliversFramesInOrder(t *testing.T) {
	ps := newPushServer(t)

	var mu sync.Mutex
	var frames []string
	m := NewManager(testConfig(), func(frame []byte) {
		mu.Lock()
		frames = append(frames, string(frame))
		mu.Unlock()
	})
	defer m.Disconnect()

	require.NoError(t, m.Connect(ps.url(), "tok"))
	assert.Equal(t, StateConnected, m.State())

	server := ps.latest()
	require.NotNil(t, server)
	for _, msg := range []string{`{"type":"new_alert"}`, `{"type":"alert_resolved"}`} {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{`{"type":"new_alert"}`, `{"type":"alert_resolved"}`}, frames)
	mu.Unlock()
}

func TestManualDisconnectStaysDown(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(testConfig(), nil)

	require.NoError(t, m.Connect(ps.url(), "tok"))
	m.Disconnect()

	assert.Equal(t, StateDisconnected, m.State())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, m.State(), "manual close must not trigger reconnect")
	assert.Equal(t, 1, ps.connCount())
}

func TestAbnormalCloseReconnects(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(testConfig(), nil)
	defer m.Disconnect()

	require.NoError(t, m.Connect(ps.url(), "tok"))
	states, cancel := m.Subscribe()
	defer cancel()

	// 服务端直接掐断底层连接，模拟异常断开
	require.NotNil(t, ps.latest())
	ps.latest().Close()

	var seen []string
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			seen = append(seen, s)
		case <-deadline:
			t.Fatalf("timed out waiting for reconnect, states: %v", seen)
		}
		if len(seen) >= 2 && seen[len(seen)-1] == StateConnected {
			break
		}
	}

	assert.Contains(t, seen, StateConnecting)
	assert.GreaterOrEqual(t, ps.connCount(), 2, "a fresh connection follows the backoff delay")
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	ps := newPushServer(t)
	cfg := testConfig()
	cfg.BaseDelay = 500 * time.Millisecond
	m := NewManager(cfg, nil)

	require.NoError(t, m.Connect(ps.url(), "tok"))
	ps.latest().Close()

	// 等待进入重连调度窗口
	assert.Eventually(t, func() bool {
		return m.State() == StateConnecting
	}, time.Second, 5*time.Millisecond)

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())

	// 退避定时器已被取消，不会再拨号
	time.Sleep(700 * time.Millisecond)
	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, 1, ps.connCount())
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2
	cfg.HandshakeTimeout = 50 * time.Millisecond
	m := NewManager(cfg, nil)

	// 无人监听的端口，拨号必然失败
	err := m.Connect("ws://127.0.0.1:1/ws/push", "tok")
	require.Error(t, err)
	assert.True(t, errors.IsConnection(err), "dial failures carry a connection error code")

	assert.Eventually(t, func() bool {
		return m.State() == StateError
	}, 3*time.Second, 20*time.Millisecond)

	last := m.LastError()
	require.Error(t, last)
	assert.Equal(t, errors.CodeConnectionFinal, errors.GetCode(last), "exhaustion is marked terminal")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvBaseDelayMs, "250")
	t.Setenv(EnvMaxAttempts, "9")
	t.Setenv(EnvWriteTimeout, "7")

	config := LoadConfigFromEnv()
	assert.Equal(t, 250*time.Millisecond, config.BaseDelay)
	assert.Equal(t, 9, config.MaxAttempts)
	assert.Equal(t, 7*time.Second, config.WriteTimeout)
	assert.Equal(t, time.Duration(DefaultPongTimeout)*time.Second, config.PongTimeout, "unset keys keep defaults")
}

func TestConnectReplacesActiveConnection(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(testConfig(), nil)
	defer m.Disconnect()

	require.NoError(t, m.Connect(ps.url(), "tok"))
	require.NoError(t, m.Connect(ps.url(), "tok"))

	assert.Equal(t, StateConnected, m.State())
	assert.Eventually(t, func() bool {
		return ps.connCount() == 2
	}, time.Second, 10*time.Millisecond)

	// 第一条连接已被关闭，替换后的连接是唯一活动连接
	first := func() *websocket.Conn {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		return ps.conns[0]
	}()
	first.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err, "server side of the replaced connection reads EOF or close")
}
