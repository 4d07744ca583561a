package internal

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

// GameKind 遊戲類型
//
// 標籤聯合（tagged union）設計：
//   - 每種遊戲類型對應一個 Engine 實現
//   - Room / Registry / Dispatcher 只依賴 Engine 介面
//   - 新增第四種遊戲只需要一個新文件 + newEngine 的一個 case
type GameKind string

const (
	KindTris    GameKind = "tris"    // 井字棋（3×3 棋盤）
	KindMorra   GameKind = "morra"   // 猜拳（剪刀石頭布）
	KindAmongUs GameKind = "amongus" // 自由移動競技場（隨機臥底）
)

// ParseGameKind 解析遊戲類型
//
// 空字串默認為 tris（最初的服務只有井字棋，舊客戶端不傳 gameType）
func ParseGameKind(s string) (GameKind, error) {
	switch GameKind(strings.TrimSpace(s)) {
	case "":
		return KindTris, nil
	case KindTris:
		return KindTris, nil
	case KindMorra:
		return KindMorra, nil
	case KindAmongUs:
		return KindAmongUs, nil
	default:
		return "", fmt.Errorf("未知的遊戲類型: %s", s)
	}
}

// Symbol 井字棋標記
type Symbol string

const (
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
	SymbolNone Symbol = "" // 觀戰者
)

// Role 競技場角色
type Role string

const (
	RoleCrew     Role = "crew"
	RoleImpostor Role = "impostor"
)

// Participant 房間內的參與者
//
// 房間擁有參與者映射；類型專屬欄位（標記、角色、位置、顏色）
// 只由對應的遊戲引擎修改。
type Participant struct {
	ID       string // 連接標識（不可見於對外序列化，由引擎決定輸出）
	Nickname string

	// 井字棋專屬
	Symbol Symbol

	// 競技場專屬
	Role  Role
	X, Y  float64
	Color string
}

// Action 客戶端遊戲操作
//
// Name 對應入站事件名（makeMove / morraChoice / move），
// Data 是原始 JSON 載荷，由各引擎自行解析。
type Action struct {
	Name string
	Data json.RawMessage
}

// EffectKind 操作結果的廣播類型
type EffectKind int

const (
	EffectNone     EffectKind = iota // 無效操作：靜默丟棄，不廣播
	EffectState                      // 狀態已變更：向全房間廣播快照
	EffectPosition                   // 位置已變更：向房間其他人廣播輕量位置更新
)

// Effect 引擎處理操作後的結果
type Effect struct {
	Kind EffectKind
	X, Y float64 // EffectPosition 專用
}

// Engine 遊戲引擎通用契約
//
// 設計要點：
//   - 引擎只負責規則（驗證、變更、終局判定），不接觸網路
//   - 所有方法都在房間鎖內被調用，引擎本身不加鎖
//   - 無效操作一律返回 EffectNone（靜默拒絕，不洩漏狀態給探測協議的客戶端）
type Engine interface {
	// Kind 返回遊戲類型
	Kind() GameKind

	// Join 在參與者加入房間後分配類型專屬屬性（標記 / 角色 / 位置）
	Join(p *Participant)

	// Leave 在參與者離開房間後清理引擎內部狀態
	Leave(p *Participant)

	// Reset 重置遊戲狀態（房間內任何參與者都可以觸發）
	Reset()

	// Apply 驗證並應用一次遊戲操作
	Apply(p *Participant, act Action) Effect

	// Snapshot 返回 gameState 事件的類型專屬欄位
	Snapshot() map[string]any

	// InitExtra 返回 init 事件中只發給加入者本人的額外欄位
	InitExtra(p *Participant) map[string]any

	// PlayerData 返回參與者在名單中的序列化形式
	PlayerData(p *Participant) map[string]any
}

// newEngine 根據遊戲類型構造引擎
//
// players 是房間的參與者映射（共享引用，成員增刪由 Room 負責，
// 引擎只讀遍歷和修改屬性）。
func newEngine(kind GameKind, players map[string]*Participant, rng *rand.Rand) Engine {
	switch kind {
	case KindMorra:
		return newDuelEngine(players)
	case KindAmongUs:
		return newArenaEngine(players, rng)
	default:
		return newGridEngine(players)
	}
}
