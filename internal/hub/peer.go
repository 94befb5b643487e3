package hub

// Peer 是 Hub 眼中的一条客户端连接。
// Send 只能做非阻塞入队: 缓冲区满或连接已关闭时返回 false，消息直接丢弃。
type Peer interface {
	ID() string
	Send(message []byte) bool
}
