package conn

import (
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"HibiscusGuard/pkg/errors"
	"HibiscusGuard/pkg/metrics"
)

// FrameHandler 按到达顺序接收原始帧，在读协程上同步调用
type FrameHandler func(frame []byte)

// Manager 持有会话内唯一的推送连接
//
// Connect 在已有活动连接时采取替换策略：旧连接被关闭，
// 新连接成为唯一活动连接（确定性行为，见规格说明）。
type Manager struct {
	mu      sync.Mutex
	config  *Config
	handler FrameHandler

	conn     *websocket.Conn
	state    string
	endpoint string
	token    string

	// 连接代数，后台协程据此识别自己是否已被替换
	gen int
	// 手动断开标记，区分正常关闭与异常断开
	manual bool

	attempt        int
	reconnectTimer *time.Timer
	lastErr        error

	subs   map[int]chan string
	nextID int
}

// NewManager 创建连接管理器
func NewManager(config *Config, handler FrameHandler) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{
		config:  config,
		handler: handler,
		state:   StateDisconnected,
		subs:    make(map[int]chan string),
	}
}

// State 当前连接状态
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError 最近一次连接失败（带错误码），连接正常时为nil
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Subscribe 订阅状态流，返回取消函数；订阅者必须成对调用取消
func (m *Manager) Subscribe() (<-chan string, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan string, 8)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// setState 更新状态并通知订阅者，调用方需持有锁
func (m *Manager) setState(state string) {
	if m.state == state {
		return
	}
	m.state = state
	if mt := metrics.Global(); mt != nil {
		mt.SetConnectionState(stateOrdinal[state])
	}
	for _, ch := range m.subs {
		select {
		case ch <- state:
		default:
			// 订阅者消费过慢时丢弃，状态流只保证最终值可读
		}
	}
}

// Connect 打开推送连接；已连接时替换旧连接
func (m *Manager) Connect(endpoint, token string) error {
	m.mu.Lock()

	m.endpoint = endpoint
	m.token = token
	m.manual = false
	m.attempt = 0
	m.lastErr = nil
	m.cancelReconnectLocked()

	// 替换策略：关闭旧连接，代数递增使旧协程退出时静默
	if m.conn != nil {
		logrus.Warnf("推送连接已存在，执行替换")
		m.conn.Close()
		m.conn = nil
	}
	m.gen++
	m.setState(StateConnecting)
	m.mu.Unlock()

	return m.dial()
}

// dial 建立一次连接，失败时走退避调度
func (m *Manager) dial() error {
	m.mu.Lock()
	endpoint, token, gen := m.endpoint, m.token, m.gen
	m.mu.Unlock()

	wsURL, err := buildURL(endpoint, token)
	if err != nil {
		cerr := errors.WrapCode(errors.CodeConnection, err, "invalid push endpoint")
		m.mu.Lock()
		m.lastErr = cerr
		m.setState(StateError)
		m.mu.Unlock()
		return cerr
	}

	dialer := &websocket.Dialer{HandshakeTimeout: m.config.HandshakeTimeout}
	ws, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		logrus.Errorf("推送连接建立失败: %v", err)
		cerr := errors.WrapCode(errors.CodeConnection, err, "dial push endpoint")
		m.mu.Lock()
		m.lastErr = cerr
		if gen == m.gen && !m.manual {
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		return cerr
	}

	m.mu.Lock()
	if gen != m.gen || m.manual {
		// 等待拨号期间已被替换或手动断开
		m.mu.Unlock()
		ws.Close()
		return nil
	}
	m.conn = ws
	m.attempt = 0
	m.lastErr = nil
	m.setState(StateConnected)
	m.mu.Unlock()

	ws.SetReadLimit(m.config.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(m.config.PongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(m.config.PongTimeout))
		return nil
	})

	go m.readPump(ws, gen)
	go m.pingLoop(ws, gen)

	logrus.Infof("推送连接已建立: %s", endpoint)
	return nil
}

// readPump 读取消息的协程，帧按到达顺序交给handler
func (m *Manager) readPump(ws *websocket.Conn, gen int) {
	defer ws.Close()

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			m.onClosed(ws, gen, err)
			return
		}
		ws.SetReadDeadline(time.Now().Add(m.config.PongTimeout))
		if m.handler != nil {
			m.handler(frame)
		}
	}
}

// pingLoop 周期性心跳协程
func (m *Manager) pingLoop(ws *websocket.Conn, gen int) {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		stale := gen != m.gen || m.conn != ws
		m.mu.Unlock()
		if stale {
			return
		}
		if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.config.WriteTimeout)); err != nil {
			ws.Close()
			return
		}
	}
}

// onClosed 连接关闭后的处理：手动关闭落到 disconnected，
// 异常关闭进入退避重连
func (m *Manager) onClosed(ws *websocket.Conn, gen int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// 本连接已被替换，静默退出
		return
	}
	m.conn = nil

	if m.manual {
		m.setState(StateDisconnected)
		return
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		logrus.Errorf("推送连接异常断开: %v", err)
	}
	m.lastErr = errors.WrapCode(errors.CodeConnection, err, "push connection lost")
	m.setState(StateConnecting)
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked 调度下一次重连，调用方需持有锁。
// 延迟为 baseDelay * 2^attempt，次数耗尽时进入 error 终态。
// 同一时刻最多只有一个重连定时器存活。
func (m *Manager) scheduleReconnectLocked() {
	if m.attempt >= m.config.MaxAttempts {
		logrus.Errorf("重连次数已达上限 %d，停止重试", m.config.MaxAttempts)
		m.lastErr = errors.WithCodef(errors.CodeConnectionFinal, "reconnect attempts exhausted after %d tries", m.config.MaxAttempts)
		m.setState(StateError)
		return
	}

	m.cancelReconnectLocked()

	delay := BackoffDelay(m.config.BaseDelay, m.attempt)
	m.attempt++
	if mt := metrics.Global(); mt != nil {
		mt.RecordReconnect()
	}
	logrus.Infof("第 %d/%d 次重连将在 %v 后发起", m.attempt, m.config.MaxAttempts, delay)

	gen := m.gen
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if gen != m.gen || m.manual {
			m.mu.Unlock()
			return
		}
		m.reconnectTimer = nil
		m.setState(StateConnecting)
		m.mu.Unlock()
		_ = m.dial()
	})
}

// cancelReconnectLocked 取消未触发的重连定时器，调用方需持有锁
func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// Disconnect 主动断开：发送正常关闭帧，取消重连定时器，不再重试
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.manual = true
	m.cancelReconnectLocked()
	m.attempt = 0
	m.lastErr = nil

	if m.conn != nil {
		deadline := time.Now().Add(m.config.WriteTimeout)
		_ = m.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "manual disconnect"), deadline)
		m.conn.Close()
		m.conn = nil
	}
	m.setState(StateDisconnected)
}

// BackoffDelay 第attempt次重连前的等待时长
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	return base * (1 << attempt)
}

// buildURL 拼接带凭证的推送地址
func buildURL(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
