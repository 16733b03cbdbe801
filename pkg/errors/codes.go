package errors

// 错误码分段：1xxx 连接，2xxx 协议，3xxx 定位
const (
	CodeConnection      = 1000 // 传输层失败，触发重连退避
	CodeConnectionFinal = 1001 // 重连次数耗尽，终态

	CodeProtocol = 2000 // 帧格式错误，丢弃后继续处理

	CodeLocationDenied      = 3000 // 平台拒绝定位权限
	CodeLocationUnavailable = 3001 // 无法获得定位
	CodeLocationTimeout     = 3002 // 定位请求超时
)

// IsConnection reports whether err is a transport-level failure.
func IsConnection(err error) bool {
	c := GetCode(err)
	return c == CodeConnection || c == CodeConnectionFinal
}

// IsProtocol reports whether err is a malformed-frame error.
func IsProtocol(err error) bool {
	return GetCode(err) == CodeProtocol
}

// IsLocation reports whether err is a location acquisition failure.
func IsLocation(err error) bool {
	c := GetCode(err)
	return c >= CodeLocationDenied && c <= CodeLocationTimeout
}
