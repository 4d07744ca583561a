package internal

import (
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// 錯誤分類：
//   - ErrInvalidRoomID / ErrKindMismatch 在加入時透過 errorMessage 回給發送者
//   - ErrRoomNotFound 之外的一切非法輸入都降級為靜默 no-op，永不致命
var (
	ErrInvalidRoomID = errors.New("房間代碼不能為空")
	ErrKindMismatch  = errors.New("房間已存在且遊戲類型不符")
	ErrRoomNotFound  = errors.New("房間不存在")
)

// Registry 房間註冊表
//
// 顯式持有並注入到連接處理層，不做全域可變狀態。Registry 獨佔
// 所有 Room 的生命週期：移除只走 RemoveIfEmpty，已移除的房間
// 會拒絕後續加入（連接層可能還握著它的過期引用）。
type Registry struct {
	rooms  map[string]*Room
	mu     sync.RWMutex
	logger *slog.Logger
	rng    *rand.Rand // 為每個新房間派生獨立隨機源
	rngMu  sync.Mutex
}

// NewRegistry 創建房間註冊表
//
// seed 為 0 時使用當前時間（生產預設）；測試傳固定種子
// 可以讓競技場的角色抽選和出生點完全可重現。
func NewRegistry(logger *slog.Logger, seed int64) *Registry {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// GetOrCreate 查找或創建房間
//
// 房間代碼去除首尾空白後不能為空。已存在的房間必須類型相符，
// 否則返回 ErrKindMismatch 且不改變任何狀態。
func (reg *Registry) GetOrCreate(roomID string, kind GameKind) (*Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrInvalidRoomID
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, exists := reg.rooms[roomID]; exists {
		if room.Kind != kind {
			return nil, ErrKindMismatch
		}
		return room, nil
	}

	room := NewRoom(roomID, kind, reg.newRand())
	reg.rooms[roomID] = room

	reg.logger.Info("房間已創建",
		"room_id", roomID,
		"game_type", kind)

	return room, nil
}

// Get 獲取房間
func (reg *Registry) Get(roomID string) (*Room, error) {
	reg.mu.RLock()
	room, exists := reg.rooms[roomID]
	reg.mu.RUnlock()

	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RemoveIfEmpty 在房間確實為空時移除它
//
// 人數檢查與移除必須是一步：「最後一人斷線」和「新人加入」
// 跑在不同的連接 goroutine 上，分開檢查會把剛加入的人困在
// 註冊表外的房間裡。在註冊表鎖內再取房間鎖重新檢查人數，
// 並標記房間為已移除（之後的 Join 會被拒絕，調用方重新
// 查找即可拿到全新房間）。鎖序固定為註冊表鎖 → 房間鎖。
func (reg *Registry) RemoveIfEmpty(roomID string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, exists := reg.rooms[roomID]
	if !exists {
		return false
	}

	room.Mu.Lock()
	if len(room.Players) > 0 {
		room.Mu.Unlock()
		return false
	}
	room.removed = true
	room.Mu.Unlock()

	delete(reg.rooms, roomID)
	reg.logger.Info("房間已移除", "room_id", roomID)
	return true
}

// RoomList 房間列表（觀測端點用）
func (reg *Registry) RoomList() []map[string]any {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	result := make([]map[string]any, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		result = append(result, map[string]any{
			"room_id":         room.ID,
			"game_type":       room.Kind,
			"current_players": room.PlayerCount(),
			"created_at":      room.CreatedAt,
		})
	}
	return result
}

// Stats 獲取統計資訊
func (reg *Registry) Stats() map[string]any {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	kindCount := make(map[GameKind]int)
	totalPlayers := 0
	for _, room := range reg.rooms {
		kindCount[room.Kind]++
		totalPlayers += room.PlayerCount()
	}

	return map[string]any{
		"total_rooms":   len(reg.rooms),
		"total_players": totalPlayers,
		"by_game_type":  kindCount,
	}
}

// newRand 派生房間專用隨機源
//
// 共享種子源只在這裡被讀取；每個房間拿到獨立的 Rand，
// 之後只在房間鎖內使用。
func (reg *Registry) newRand() *rand.Rand {
	reg.rngMu.Lock()
	defer reg.rngMu.Unlock()
	return rand.New(rand.NewSource(reg.rng.Int63()))
}
