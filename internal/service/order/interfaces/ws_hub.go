// internal/service/order/interfaces/ws_hub.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/service/order/application"
	"orderdesk/internal/service/order/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientSendSize = 64
)

// snapshotMessage 是新连接收到的第一条消息
// 视图整体替换（切换日期）时也会重发给所有已连接的客户端
type snapshotMessage struct {
	Type   string         `json:"type"`
	Day    string         `json:"day,omitempty"`
	Orders []domain.Order `json:"orders"`
}

// Hub 把视图变化广播给已连接的看板（厨房屏、前台屏）。
// 发送缓冲满的客户端会被断开，不会拖慢视图更新。
type Hub struct {
	upgrader websocket.Upgrader
	view     func(fn func([]domain.Order))

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub view 在视图不变的前提下回调 fn，一般传 LiveSyncReconciler.View
func NewHub(view func(fn func([]domain.Order))) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		view:    view,
		clients: make(map[*wsClient]struct{}),
	}
}

// OnChange 可直接注册为 LiveSyncReconciler 的监听者
func (h *Hub) OnChange(outcome application.Outcome, order domain.Order) {
	ev := domain.NewOrderUpdated(order)
	if outcome == application.OutcomeAdded {
		ev = domain.NewOrderCreated(order)
	}
	body, err := ev.Encode()
	if err != nil {
		logger.Ctx(context.Background()).Error().Err(err).Str("order_id", order.ID).Msg("Encode websocket event failed")
		return
	}
	h.Broadcast(body)
}

// OnReset 可直接注册为 LiveSyncReconciler 的视图替换监听，客户端收到新快照后丢弃旧数据
func (h *Hub) OnReset(day time.Time, orders []domain.Order) {
	body, err := json.Marshal(snapshotMessage{Type: "snapshot", Day: day.Format(time.DateOnly), Orders: orders})
	if err != nil {
		logger.Ctx(context.Background()).Error().Err(err).Msg("Encode websocket snapshot failed")
		return
	}
	h.Broadcast(body)
}

// Broadcast 非阻塞地发给所有客户端
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			c.close()
		}
	}
}

// Clients 返回当前连接数
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS 升级连接，先推送快照再进入广播
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, clientSendSize)}

	// 快照和注册在视图读锁内完成，之后的变化一定排在快照之后
	register := func(orders []domain.Order) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if body, err := json.Marshal(snapshotMessage{Type: "snapshot", Orders: orders}); err == nil {
			c.send <- body
		}
		h.clients[c] = struct{}{}
	}
	if h.view != nil {
		h.view(register)
	} else {
		register(nil)
	}

	go h.writePump(c)
	h.readPump(c)
}

// Close 断开所有客户端
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump 只处理控制帧，客户端断开时退出
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
