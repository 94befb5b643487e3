package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/dto"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 教师端每一笔都会发送完整画板，单帧上限放宽到 1MB
	maxMessageSize = 1 << 20

	defaultQueueSize = 1024
)

var ErrHubStopped = errors.New("hub: stopped")

type messageKind int

const (
	msgRegister messageKind = iota
	msgEvent
	msgUnregister
)

func (k messageKind) String() string {
	switch k {
	case msgRegister:
		return "register"
	case msgEvent:
		return "event"
	case msgUnregister:
		return "unregister"
	default:
		return "unknown"
	}
}

// HubMessage 定义了在 Hub 内部通道传递的消息
type HubMessage struct {
	Type   messageKind
	Client *Client
	Event  dto.Event     // 仅 msgEvent
	done   chan struct{} // register/unregister 处理完成后关闭
}

// Hub 串行处理所有连接事件: 每个事件在主循环中执行完毕后才处理下一个。
type Hub struct {
	controller  *Controller
	messageChan chan HubMessage
	quit        chan struct{}
	stopOnce    sync.Once
	log         *logrus.Entry
}

// NewHub 创建 Hub。queueSize <= 0 时使用默认值。
func NewHub(controller *Controller, queueSize int) *Hub {
	if controller == nil {
		panic("Controller cannot be nil for Hub")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		controller:  controller,
		messageChan: make(chan HubMessage, queueSize),
		quit:        make(chan struct{}),
		log:         logrus.WithField("component", "hub"),
	}
}

func (h *Hub) Controller() *Controller { return h.controller }

// Run 启动 Hub 的主事件循环，应在单独的 goroutine 中运行，Stop 后返回。
func (h *Hub) Run() {
	h.log.Info("Hub is running...")
	for {
		select {
		case msg := <-h.messageChan:
			h.handle(msg)
		case <-h.quit:
			h.log.Info("Hub is shutting down...")
			return
		}
	}
}

func (h *Hub) handle(msg HubMessage) {
	if msg.done != nil {
		defer close(msg.done)
	}
	if msg.Client == nil {
		h.log.Errorf("Hub: received %s message without client", msg.Type)
		return
	}

	switch msg.Type {
	case msgRegister:
		if !h.controller.Connect(msg.Client, msg.Client.UserID()) {
			h.log.WithField("conn_id", msg.Client.ID()).Warn("Duplicate connection id, registration ignored")
		}
	case msgEvent:
		h.controller.Handle(msg.Client.ID(), msg.Event)
	case msgUnregister:
		h.controller.Disconnect(msg.Client.ID())
		msg.Client.closeSend()
	default:
		h.log.Warnf("Hub: received unknown message type %d", msg.Type)
	}
}

// Register 把客户端登记到 Hub，在主循环处理完之后返回。
func (h *Hub) Register(c *Client) error {
	return h.submit(HubMessage{Type: msgRegister, Client: c})
}

// Unregister 触发断开清理，保证只执行一次并在完成后关闭 send 通道。
func (h *Hub) Unregister(c *Client) {
	if err := h.submit(HubMessage{Type: msgUnregister, Client: c}); err != nil {
		c.closeSend()
	}
}

// Dispatch 把事件放入队列。画板快照可被下一帧覆盖，队列满时直接丢弃；
// 其余生命周期事件会等待队列空位，Hub 停止时返回 false。
func (h *Hub) Dispatch(c *Client, ev dto.Event) bool {
	select {
	case <-h.quit:
		return false
	default:
	}
	msg := HubMessage{Type: msgEvent, Client: c, Event: ev}
	if _, ok := ev.(dto.WhiteboardUpdate); ok {
		select {
		case h.messageChan <- msg:
			return true
		default:
			return false
		}
	}
	select {
	case h.messageChan <- msg:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) submit(msg HubMessage) error {
	msg.done = make(chan struct{})
	select {
	case h.messageChan <- msg:
	case <-h.quit:
		return ErrHubStopped
	}
	select {
	case <-msg.done:
		return nil
	case <-h.quit:
		return ErrHubStopped
	}
}

// Stop 结束主循环并关闭所有客户端连接。可重复调用。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		for _, p := range h.controller.Registry().Peers() {
			if c, ok := p.(*Client); ok {
				c.CloseConn()
			}
		}
		h.log.Info("Hub stopped")
	})
}
