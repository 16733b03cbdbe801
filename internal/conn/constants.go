package conn

// 连接状态
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateError        = "error"
)

// 默认配置值
const (
	DefaultBaseDelayMs      = 1000
	DefaultMaxAttempts      = 5
	DefaultHandshakeTimeout = 10
	DefaultWriteTimeout     = 10
	DefaultPingInterval     = 30
	DefaultPongTimeout      = 60
	DefaultMaxMessageSize   = 65536
)

// 环境变量配置键
const (
	EnvBaseDelayMs      = "GUARD_WS_BASE_DELAY_MS"
	EnvMaxAttempts      = "GUARD_WS_MAX_ATTEMPTS"
	EnvHandshakeTimeout = "GUARD_WS_HANDSHAKE_TIMEOUT"
	EnvWriteTimeout     = "GUARD_WS_WRITE_TIMEOUT"
	EnvPingInterval     = "GUARD_WS_PING_INTERVAL"
	EnvPongTimeout      = "GUARD_WS_PONG_TIMEOUT"
	EnvMaxMessageSize   = "GUARD_WS_MAX_MESSAGE_SIZE"
)

// stateOrdinal 状态对应的指标数值
var stateOrdinal = map[string]int{
	StateDisconnected: 0,
	StateConnecting:   1,
	StateConnected:    2,
	StateError:        3,
}
