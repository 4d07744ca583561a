package internal

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// 系統設計問題：
//   如何讓多個獨立房間各自運行不同類型的小遊戲，並向所有成員
//   廣播一致的狀態？
//
// 核心挑戰：
//   1. 狀態隔離：每個房間一個權威遊戲狀態，互不干擾
//   2. 規則多態：三種遊戲（井字棋 / 猜拳 / 競技場）共用同一條
//      「驗證 → 變更 → 廣播」路徑
//   3. 並發控制：同房間的操作必須原子（落子與斷線不能交錯）
//   4. 生命週期：人數歸零時房間立即銷毀，狀態不可恢復
//
// 設計方案：
//   ✅ 每房間一把 RWMutex - 粗粒度房間鎖（跨房間操作不存在）
//   ✅ Engine 介面 - 規則多態，Room 不感知具體遊戲
//   ✅ 每房間獨立隨機源 - 可注入種子，測試可重現
//   ✅ 引擎只在鎖內被調用 - 引擎本身無鎖

// Room 遊戲房間
//
// 所有權：Room 獨佔它的引擎和參與者映射；Registry 獨佔所有
// Room。參與者映射與引擎共享同一份 map 引用——成員增刪由
// Room 執行，引擎只遍歷和修改屬性。
type Room struct {
	ID   string
	Kind GameKind

	Players map[string]*Participant
	Engine  Engine

	Mu        sync.RWMutex
	CreatedAt time.Time
	UpdatedAt time.Time

	// 已從 Registry 移除。由 Registry 在兩把鎖內設置；
	// 設置後 Join 一律拒絕，避免參與者困在註冊表外的房間裡。
	removed bool
}

// NewRoom 創建空房間
//
// 遊戲類型在創建後不可變更；rng 是這個房間專用的隨機源，
// 只在房間鎖內使用。
func NewRoom(id string, kind GameKind, rng *rand.Rand) *Room {
	now := time.Now()
	players := make(map[string]*Participant)
	return &Room{
		ID:        id,
		Kind:      kind,
		Players:   players,
		Engine:    newEngine(kind, players, rng),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Join 註冊參與者並分配類型專屬屬性
//
// 空白暱稱退回預設值。重複加入是冪等的（返回已有的參與者）。
// 房間已被 Registry 移除時返回 false，調用方應重新查找房間。
func (r *Room) Join(id, nickname string) (*Participant, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.removed {
		return nil, false
	}

	if existing, ok := r.Players[id]; ok {
		return existing, true
	}

	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = defaultNickname(id)
	}

	p := &Participant{
		ID:       id,
		Nickname: nickname,
	}
	r.Players[id] = p
	r.Engine.Join(p)
	r.UpdatedAt = time.Now()

	return p, true
}

// Leave 移除參與者，返回剩餘人數
//
// 調用方在返回 0 時負責把房間從 Registry 移除。
func (r *Room) Leave(id string) int {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p, ok := r.Players[id]
	if !ok {
		return len(r.Players)
	}

	delete(r.Players, id)
	r.Engine.Leave(p)
	r.UpdatedAt = time.Now()

	return len(r.Players)
}

// Apply 路由一次遊戲操作到引擎
//
// 非成員的操作靜默拒絕（協議探測不給任何回應）。
func (r *Room) Apply(id string, act Action) Effect {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p, ok := r.Players[id]
	if !ok {
		return Effect{Kind: EffectNone}
	}

	effect := r.Engine.Apply(p, act)
	if effect.Kind != EffectNone {
		r.UpdatedAt = time.Now()
	}
	return effect
}

// Reset 重置遊戲狀態
//
// 房間內任何參與者（包括觀戰者）都可以觸發；非成員靜默拒絕。
func (r *Room) Reset(id string) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if _, ok := r.Players[id]; !ok {
		return false
	}

	r.Engine.Reset()
	r.UpdatedAt = time.Now()
	return true
}

// PlayerCount 獲取參與者數量
func (r *Room) PlayerCount() int {
	r.Mu.RLock()
	defer r.Mu.RUnlock()
	return len(r.Players)
}

// StatePayload 構建 gameState 事件載荷
func (r *Room) StatePayload() map[string]any {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	payload := r.Engine.Snapshot()
	payload["gameType"] = string(r.Kind)
	payload["players"] = r.playersLocked()
	return payload
}

// PlayersPayload 構建 playersUpdate 事件載荷
func (r *Room) PlayersPayload() map[string]any {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	return map[string]any{"players": r.playersLocked()}
}

// InitPayload 構建 init 事件載荷（只發給加入者本人）
func (r *Room) InitPayload(id string) map[string]any {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	payload := r.Engine.Snapshot()
	payload["roomId"] = r.ID
	payload["gameType"] = string(r.Kind)
	payload["players"] = r.playersLocked()

	if p, ok := r.Players[id]; ok {
		for k, v := range r.Engine.InitExtra(p) {
			payload[k] = v
		}
	}
	return payload
}

// MemberIDs 當前成員標識（廣播時在鎖外迭代用的副本）
func (r *Room) MemberIDs() []string {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	return ids
}

// playersLocked 序列化名單（需要持有讀鎖）
func (r *Room) playersLocked() map[string]any {
	players := make(map[string]any, len(r.Players))
	for id, p := range r.Players {
		players[id] = r.Engine.PlayerData(p)
	}
	return players
}

// defaultNickname 空白暱稱的預設值
func defaultNickname(id string) string {
	suffix := id
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	return fmt.Sprintf("玩家%s", suffix)
}
