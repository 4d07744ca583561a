package internal

import (
	"encoding/json"
	"math/rand"
	"sort"
)

// 競技場引擎
//
// 持續運行的共享狀態模擬，沒有勝負條件。核心不變量：
// 房間非空時恰好有一名臥底，在每次加入、離開、重置後
// 對當前參與者集合重新抽選。
//
// 隨機源由外部注入（每個房間一個獨立的 rand.Rand，只在
// 房間鎖內使用），測試可以用固定種子斷言確定性結果。

// 競技場邊界（含邊距的固定矩形）
const (
	arenaMinX = 40.0
	arenaMaxX = 760.0
	arenaMinY = 40.0
	arenaMaxY = 460.0

	// 出生點子矩形（避免貼邊出生）
	spawnMinX = 100.0
	spawnMaxX = 700.0
	spawnMinY = 100.0
	spawnMaxY = 400.0
)

// arenaPalette 固定調色板
var arenaPalette = []string{
	"#c51111", "#132ed1", "#117f2d", "#ed54ba",
	"#ef7d0d", "#f5f557", "#3f474e", "#d6e0f0",
}

// ArenaEngine 競技場引擎
type ArenaEngine struct {
	players map[string]*Participant
	rng     *rand.Rand
}

func newArenaEngine(players map[string]*Participant, rng *rand.Rand) *ArenaEngine {
	return &ArenaEngine{
		players: players,
		rng:     rng,
	}
}

// Kind 返回遊戲類型
func (a *ArenaEngine) Kind() GameKind { return KindAmongUs }

// Join 隨機出生點 + 隨機顏色，然後重新抽選臥底
func (a *ArenaEngine) Join(p *Participant) {
	p.X = spawnMinX + a.rng.Float64()*(spawnMaxX-spawnMinX)
	p.Y = spawnMinY + a.rng.Float64()*(spawnMaxY-spawnMinY)
	p.Color = arenaPalette[a.rng.Intn(len(arenaPalette))]
	p.Role = RoleCrew

	a.assignImpostor()
}

// Leave 離開後重新抽選臥底（臥底離開時必須補選）
func (a *ArenaEngine) Leave(p *Participant) {
	a.assignImpostor()
}

// Reset 重新隨機所有人的位置並重新抽選臥底
func (a *ArenaEngine) Reset() {
	for _, p := range a.players {
		p.X = spawnMinX + a.rng.Float64()*(spawnMaxX-spawnMinX)
		p.Y = spawnMinY + a.rng.Float64()*(spawnMaxY-spawnMinY)
	}
	a.assignImpostor()
}

// movePayload 移動事件載荷
type movePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Apply 處理位置更新
//
// 座標夾取到競技場邊界內（任意輸入，包括負值和超大值）。
// 移動只觸發輕量位置廣播，不發送完整快照。
func (a *ArenaEngine) Apply(p *Participant, act Action) Effect {
	if act.Name != "move" {
		return Effect{Kind: EffectNone}
	}

	var payload movePayload
	if err := json.Unmarshal(act.Data, &payload); err != nil {
		return Effect{Kind: EffectNone}
	}

	p.X = clamp(payload.X, arenaMinX, arenaMaxX)
	p.Y = clamp(payload.Y, arenaMinY, arenaMaxY)

	return Effect{Kind: EffectPosition, X: p.X, Y: p.Y}
}

// assignImpostor 在當前參與者中均勻抽選恰好一名臥底
func (a *ArenaEngine) assignImpostor() {
	if len(a.players) == 0 {
		return
	}

	// map 遍歷順序隨機但不受控；收集後用注入的隨機源抽選，
	// 保證固定種子下結果可重現
	ids := make([]string, 0, len(a.players))
	for id := range a.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	chosen := ids[a.rng.Intn(len(ids))]
	for id, p := range a.players {
		if id == chosen {
			p.Role = RoleImpostor
		} else {
			p.Role = RoleCrew
		}
	}
}

// Snapshot 競技場的完整狀態都在名單裡，沒有額外欄位
func (a *ArenaEngine) Snapshot() map[string]any {
	return map[string]any{}
}

// InitExtra 加入者本人的初始位置、顏色與角色
func (a *ArenaEngine) InitExtra(p *Participant) map[string]any {
	return map[string]any{
		"you": map[string]any{
			"x":     p.X,
			"y":     p.Y,
			"color": p.Color,
			"role":  string(p.Role),
		},
	}
}

// PlayerData 名單條目
func (a *ArenaEngine) PlayerData(p *Participant) map[string]any {
	return map[string]any{
		"nickname": p.Nickname,
		"x":        p.X,
		"y":        p.Y,
		"color":    p.Color,
		"role":     string(p.Role),
	}
}

// clamp 夾取到 [min, max]
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
