package internal_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koopa0/system-design/14-mini-game-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHub 啟動掛著 Hub 的測試服務器，返回 ws:// 地址
func newTestHub(t *testing.T) (*internal.Hub, *internal.Registry, string) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := internal.NewRegistry(logger, 1)
	hub := internal.NewHub(registry, logger)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)
	t.Cleanup(hub.Stop)

	return hub, registry, "ws" + strings.TrimPrefix(server.URL, "http")
}

// dialWS 建立客戶端連接
func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendEvent 發送一條信封消息
func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	message, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, message))
}

// readEvent 讀取下一條信封消息（每連接消息順序是確定的）
func readEvent(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(message, &envelope))
	return envelope.Event, envelope.Data
}

// readObject 讀取下一條消息並斷言事件名，載荷解成映射
func readObject(t *testing.T, conn *websocket.Conn, wantEvent string) map[string]any {
	t.Helper()
	event, data := readEvent(t, conn)
	require.Equal(t, wantEvent, event)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	return payload
}

// readErrorMessage 讀取下一條消息並斷言是 errorMessage
func readErrorMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	event, data := readEvent(t, conn)
	require.Equal(t, "errorMessage", event)

	var message string
	require.NoError(t, json.Unmarshal(data, &message))
	return message
}

// TestHub_JoinFlow 測試加入流程的完整扇出
//
// 加入者收到 init（含本人標記），房間裡的舊成員收到 playersUpdate。
func TestHub_JoinFlow(t *testing.T) {
	_, registry, url := newTestHub(t)

	connA := dialWS(t, url)
	sendEvent(t, connA, "joinRoom", map[string]any{"roomId": "room_700", "nickname": "Ann", "gameType": "tris"})

	init := readObject(t, connA, "init")
	assert.Equal(t, "room_700", init["roomId"])
	assert.Equal(t, "tris", init["gameType"])
	assert.Equal(t, "X", init["symbol"])

	// gameType 省略時默認井字棋，與已有房間相符
	connB := dialWS(t, url)
	sendEvent(t, connB, "joinRoom", map[string]any{"roomId": "room_700", "nickname": "Bob"})

	init = readObject(t, connB, "init")
	assert.Equal(t, "O", init["symbol"])

	update := readObject(t, connA, "playersUpdate")
	assert.Len(t, update["players"].(map[string]any), 2)

	room, err := registry.Get("room_700")
	require.NoError(t, err)
	assert.Equal(t, 2, room.PlayerCount())
}

// TestHub_JoinErrors 測試加入驗證失敗的 errorMessage 單播
func TestHub_JoinErrors(t *testing.T) {
	_, _, url := newTestHub(t)

	connA := dialWS(t, url)

	// 空房間代碼
	sendEvent(t, connA, "joinRoom", map[string]any{"roomId": "", "gameType": "tris"})
	assert.Equal(t, "房間代碼不能為空", readErrorMessage(t, connA))

	// 未知遊戲類型
	sendEvent(t, connA, "joinRoom", map[string]any{"roomId": "room_701", "gameType": "chess"})
	assert.Contains(t, readErrorMessage(t, connA), "未知的遊戲類型")

	// 驗證失敗不算加入，之後仍然可以正常加入
	sendEvent(t, connA, "joinRoom", map[string]any{"roomId": "room_701", "gameType": "tris"})
	readObject(t, connA, "init")

	// 已在房間內
	sendEvent(t, connA, "joinRoom", map[string]any{"roomId": "room_702", "gameType": "tris"})
	assert.Equal(t, "已在房間內", readErrorMessage(t, connA))

	// 類型不符的加入被拒絕
	connB := dialWS(t, url)
	sendEvent(t, connB, "joinRoom", map[string]any{"roomId": "room_701", "gameType": "amongus"})
	assert.Equal(t, "房間已存在且遊戲類型不符", readErrorMessage(t, connB))
}

// TestHub_GameEventsBroadcast 測試遊戲操作與重置的快照廣播
func TestHub_GameEventsBroadcast(t *testing.T) {
	_, _, url := newTestHub(t)

	connA := dialWS(t, url)
	sendEvent(t, connA, "joinRoom", map[string]any{"roomId": "room_703", "nickname": "Ann", "gameType": "tris"})
	readObject(t, connA, "init")

	connB := dialWS(t, url)
	sendEvent(t, connB, "joinRoom", map[string]any{"roomId": "room_703", "nickname": "Bob", "gameType": "tris"})
	readObject(t, connB, "init")
	readObject(t, connA, "playersUpdate")

	// Ann 落子，兩人都收到完整快照
	sendEvent(t, connA, "makeMove", 4)
	for _, conn := range []*websocket.Conn{connA, connB} {
		state := readObject(t, conn, "gameState")
		board := state["board"].([]any)
		assert.Equal(t, "X", board[4])
		assert.Equal(t, "O", state["currentTurn"])
	}

	// Bob 重置，棋盤清空
	sendEvent(t, connB, "reset", nil)
	for _, conn := range []*websocket.Conn{connA, connB} {
		state := readObject(t, conn, "gameState")
		for _, cell := range state["board"].([]any) {
			assert.Nil(t, cell)
		}
	}
}

// TestHub_DisconnectBroadcastsRoster 測試斷線後的名單更新
func TestHub_DisconnectBroadcastsRoster(t *testing.T) {
	_, _, url := newTestHub(t)

	connA := dialWS(t, url)
	sendEvent(t, connA, "joinRoom", map[string]any{"roomId": "room_704", "nickname": "Ann", "gameType": "morra"})
	readObject(t, connA, "init")

	connB := dialWS(t, url)
	sendEvent(t, connB, "joinRoom", map[string]any{"roomId": "room_704", "nickname": "Bob", "gameType": "morra"})
	readObject(t, connB, "init")
	readObject(t, connA, "playersUpdate")

	require.NoError(t, connA.Close())

	update := readObject(t, connB, "playersUpdate")
	assert.Len(t, update["players"].(map[string]any), 1)
}

// TestHub_LastDisconnectRemovesRoom 測試房間生命週期
//
// 最後一名成員斷線時房間立即銷毀；同一代碼之後可以用
// 不同的遊戲類型重建。
func TestHub_LastDisconnectRemovesRoom(t *testing.T) {
	_, registry, url := newTestHub(t)

	connA := dialWS(t, url)
	sendEvent(t, connA, "joinRoom", map[string]any{"roomId": "room_705", "gameType": "morra"})
	readObject(t, connA, "init")

	_, err := registry.Get("room_705")
	require.NoError(t, err)

	require.NoError(t, connA.Close())

	// 斷線處理跑在連接自己的 goroutine 上
	assert.Eventually(t, func() bool {
		_, err := registry.Get("room_705")
		return errors.Is(err, internal.ErrRoomNotFound)
	}, 2*time.Second, 10*time.Millisecond)

	connB := dialWS(t, url)
	sendEvent(t, connB, "joinRoom", map[string]any{"roomId": "room_705", "gameType": "amongus"})
	init := readObject(t, connB, "init")
	assert.Equal(t, "amongus", init["gameType"])
}
