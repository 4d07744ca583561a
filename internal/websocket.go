package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把「可靠、有序的每連接雙工事件通道」落在 WebSocket 上，
//   並把入站事件串行地餵給房間？
//
// 核心挑戰：
//   1. 連接管理：升級、註冊、斷線視為普通輸入事件
//   2. 心跳機制：檢測死連接（網絡異常、瀏覽器崩潰）
//   3. 廣播不阻塞：慢接收者不能拖住房間的狀態變更
//
// 設計方案：
//   ✅ Hub 模式 - 集中管理所有連接，扁平 conn 表 + 房間成員扇出
//   ✅ Ping/Pong 心跳 - 54s/60s（避開代理的 60s 超時，留 6s 余量）
//   ✅ 緩衝 channel - 每連接異步發送，滿了丟棄
//   ✅ Session 值 - 會話上下文在事件處理間顯式傳遞

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Hub WebSocket 連接中心
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	conns map[string]*Connection // connID -> Connection
	mu    sync.RWMutex
}

// Connection 單個 WebSocket 連接
type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	closeOnce sync.Once
}

// NewHub 創建連接中心
func NewHub(registry *Registry, logger *slog.Logger) *Hub {
	hub := &Hub{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string]*Connection),
	}
	hub.dispatcher = NewDispatcher(hub, logger)
	return hub
}

// ServeWS 處理 WebSocket 連接
//
// 每個連接分配一個 UUID 作為參與者標識，貫穿整個會話。
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 256),
		hub:  hub,
	}

	hub.register(connection)

	go connection.writePump()
	go connection.readPump()

	hub.logger.Info("WebSocket 連接建立", "conn_id", connection.id)
}

// Send 投遞消息到單個連接（實現 sender）
//
// 非阻塞：緩衝區滿時丟棄並記錄（優先保證房間操作不被拖住）。
func (hub *Hub) Send(connID string, message []byte) {
	hub.mu.RLock()
	connection, exists := hub.conns[connID]
	hub.mu.RUnlock()

	if !exists {
		return
	}

	select {
	case connection.send <- message:
	default:
		hub.logger.Warn("連接緩衝區滿，丟棄消息", "conn_id", connID)
	}
}

// ConnectionCount 當前連接數
func (hub *Hub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.conns)
}

// Stop 關閉所有連接
func (hub *Hub) Stop() {
	hub.mu.Lock()
	for _, connection := range hub.conns {
		connection.closeOnce.Do(func() {
			close(connection.send)
		})
		connection.conn.Close()
	}
	hub.conns = make(map[string]*Connection)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// register 註冊連接
func (hub *Hub) register(connection *Connection) {
	hub.mu.Lock()
	hub.conns[connection.id] = connection
	hub.mu.Unlock()
}

// unregister 取消註冊連接
func (hub *Hub) unregister(connection *Connection) {
	hub.mu.Lock()
	if actual, exists := hub.conns[connection.id]; exists && actual == connection {
		delete(hub.conns, connection.id)
		connection.closeOnce.Do(func() {
			close(connection.send)
		})
	}
	hub.mu.Unlock()
}

// inboundEvent 入站事件信封
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// joinPayload joinRoom 事件載荷
type joinPayload struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
	GameType string `json:"gameType"`
}

// route 路由一條入站消息
//
// 會話上下文作為值傳入傳出：加入房間是唯一會改變它的操作。
// 除加入驗證失敗外，一切非法輸入都靜默丟棄（不給探測協議的
// 客戶端任何回應）。
func (hub *Hub) route(sess Session, message []byte) Session {
	var in inboundEvent
	if err := json.Unmarshal(message, &in); err != nil {
		hub.logger.Debug("解析客戶端消息失敗", "error", err, "conn_id", sess.ConnID)
		return sess
	}

	switch in.Event {
	case "joinRoom":
		return hub.handleJoin(sess, in.Data)

	case "makeMove", "morraChoice", "move":
		hub.handleAction(sess, Action{Name: in.Event, Data: in.Data})
		return sess

	case "reset":
		hub.handleReset(sess)
		return sess

	default:
		hub.logger.Debug("收到未知事件", "event", in.Event, "conn_id", sess.ConnID)
		return sess
	}
}

// handleJoin 處理加入請求
func (hub *Hub) handleJoin(sess Session, data json.RawMessage) Session {
	if sess.InRoom() {
		hub.dispatcher.Error(sess.ConnID, "已在房間內")
		return sess
	}

	var payload joinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		hub.dispatcher.Error(sess.ConnID, "無效的請求格式")
		return sess
	}

	kind, err := ParseGameKind(payload.GameType)
	if err != nil {
		hub.dispatcher.Error(sess.ConnID, err.Error())
		return sess
	}

	room, err := hub.registry.GetOrCreate(payload.RoomID, kind)
	if err != nil {
		hub.dispatcher.Error(sess.ConnID, err.Error())
		return sess
	}

	// 查找與加入之間，最後一名成員可能剛好斷線並銷毀了房間；
	// 對已移除房間的加入會被拒絕，重新查找拿到全新房間。
	for {
		if _, ok := room.Join(sess.ConnID, payload.Nickname); ok {
			break
		}
		room, err = hub.registry.GetOrCreate(payload.RoomID, kind)
		if err != nil {
			hub.dispatcher.Error(sess.ConnID, err.Error())
			return sess
		}
	}
	sess.RoomID = room.ID

	// 加入者拿完整初始快照，其他成員拿名單更新
	hub.dispatcher.Init(room, sess.ConnID)
	hub.dispatcher.PlayersChanged(room, sess.ConnID)

	hub.logger.Info("參與者加入房間",
		"room_id", room.ID,
		"conn_id", sess.ConnID,
		"game_type", room.Kind)

	return sess
}

// handleAction 處理遊戲操作
func (hub *Hub) handleAction(sess Session, act Action) {
	if !sess.InRoom() {
		return
	}

	room, err := hub.registry.Get(sess.RoomID)
	if err != nil {
		return
	}

	effect := room.Apply(sess.ConnID, act)
	switch effect.Kind {
	case EffectState:
		hub.dispatcher.Snapshot(room)
	case EffectPosition:
		hub.dispatcher.PositionChanged(room, sess.ConnID, effect.X, effect.Y)
	}
}

// handleReset 處理重置請求
func (hub *Hub) handleReset(sess Session) {
	if !sess.InRoom() {
		return
	}

	room, err := hub.registry.Get(sess.RoomID)
	if err != nil {
		return
	}

	if room.Reset(sess.ConnID) {
		hub.dispatcher.Snapshot(room)
	}
}

// handleDisconnect 處理斷線
//
// 斷線是普通輸入：移除參與者、人數歸零時銷毀房間，
// 否則向剩餘成員廣播名單更新。
func (hub *Hub) handleDisconnect(sess Session) {
	if !sess.InRoom() {
		return
	}

	room, err := hub.registry.Get(sess.RoomID)
	if err != nil {
		return
	}

	remaining := room.Leave(sess.ConnID)
	if remaining == 0 {
		// 再檢查一次人數：此刻可能已有新人加入，房間必須保留
		hub.registry.RemoveIfEmpty(room.ID)
		return
	}

	hub.dispatcher.PlayersChanged(room, "")

	hub.logger.Info("參與者離開房間",
		"room_id", room.ID,
		"conn_id", sess.ConnID,
		"remaining", remaining)
}

// readPump 讀取客戶端消息
//
// 心跳（讀取端）：60 秒內沒有任何消息（含 Pong）就斷開。
// 配合 writePump 的 54 秒 Ping，留 6 秒余量。
func (c *Connection) readPump() {
	sess := Session{ConnID: c.id}

	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.hub.handleDisconnect(sess)
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"conn_id", c.id)
			}
			break
		}

		if messageType == websocket.TextMessage {
			sess = c.hub.route(sess, message)
		}
	}
}

// writePump 寫入消息到客戶端
//
// 心跳（發送端）：每 54 秒發一次 Ping。異步發送透過緩衝
// channel，業務邏輯永不等待網路。
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，優雅關閉連接
				deadline := time.Now().Add(time.Second)
				if err := c.conn.SetWriteDeadline(deadline); err == nil {
					_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					c.hub.logger.Error("發送消息失敗", "error", err)
					return
				}
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
