package internal

import (
	"encoding/json"
	"log/slog"
)

// Event 對外事件信封
//
// 一條 WebSocket 文本消息就是一個 JSON 信封：
//
//	{"event": "gameState", "data": {...}}
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

// sender 把序列化後的消息投遞到單個連接
//
// 投遞是 fire-and-forget：不等待確認、不施加背壓，慢接收者
// 不會阻塞房間操作（由連接層的緩衝 channel 保證）。
type sender interface {
	Send(connID string, message []byte)
}

// Dispatcher 廣播分發器
//
// 負責三種扇出：
//   - 全房間快照（落子 / 重置 / 猜拳結算後）
//   - 名單更新（加入 / 斷線後）
//   - 單播（init 給加入者、errorMessage 給出錯的發送者）
type Dispatcher struct {
	out    sender
	logger *slog.Logger
}

// NewDispatcher 創建分發器
func NewDispatcher(out sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		out:    out,
		logger: logger,
	}
}

// Init 向加入者發送初始快照
func (d *Dispatcher) Init(room *Room, connID string) {
	d.unicast(connID, Event{Type: "init", Data: room.InitPayload(connID)})
}

// Snapshot 向全房間廣播完整狀態
func (d *Dispatcher) Snapshot(room *Room) {
	d.broadcast(room.MemberIDs(), "", Event{Type: "gameState", Data: room.StatePayload()})
}

// PlayersChanged 廣播名單更新
//
// exclude 通常是剛加入的人（他在 init 裡已經拿到完整名單）。
func (d *Dispatcher) PlayersChanged(room *Room, exclude string) {
	d.broadcast(room.MemberIDs(), exclude, Event{Type: "playersUpdate", Data: room.PlayersPayload()})
}

// PositionChanged 向房間其他人廣播輕量位置更新
//
// 競技場移動頻率高，只發位置不發完整快照。
func (d *Dispatcher) PositionChanged(room *Room, moverID string, x, y float64) {
	d.broadcast(room.MemberIDs(), moverID, Event{
		Type: "playerMoved",
		Data: map[string]any{
			"id": moverID,
			"x":  x,
			"y":  y,
		},
	})
}

// Error 向單個連接發送錯誤消息（加入驗證失敗時）
func (d *Dispatcher) Error(connID string, message string) {
	d.unicast(connID, Event{Type: "errorMessage", Data: message})
}

// broadcast 向一組連接扇出同一條消息
func (d *Dispatcher) broadcast(ids []string, exclude string, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("序列化事件失敗", "error", err, "event", event.Type)
		return
	}

	for _, id := range ids {
		if id == exclude {
			continue
		}
		d.out.Send(id, message)
	}
}

// unicast 向單個連接投遞
func (d *Dispatcher) unicast(connID string, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("序列化事件失敗", "error", err, "event", event.Type)
		return
	}
	d.out.Send(connID, message)
}
