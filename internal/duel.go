package internal

import (
	"encoding/json"
	"fmt"
)

// 猜拳引擎
//
// 沒有觀戰者概念，房間內任何參與者都可以出拳。當待定選擇
// 達到兩個時立即同步結算；三人以上的房間只結算最先出拳的
// 兩人（按到達順序），結算後所有待定選擇（含第三人的過期
// 選擇）一併清空。

// Choice 猜拳選擇
type Choice string

const (
	ChoiceRock     Choice = "rock"
	ChoicePaper    Choice = "paper"
	ChoiceScissors Choice = "scissors"
)

// beats 循環克制：石頭勝剪刀、剪刀勝布、布勝石頭
var beats = map[Choice]Choice{
	ChoiceRock:     ChoiceScissors,
	ChoiceScissors: ChoicePaper,
	ChoicePaper:    ChoiceRock,
}

// duelResult 上一輪結算記錄
type duelResult struct {
	Winner string `json:"winner"` // 勝者暱稱，平局為空
	Text   string `json:"text"`   // 人類可讀的結算描述
}

// DuelEngine 猜拳引擎
type DuelEngine struct {
	players map[string]*Participant

	pending map[string]Choice // 參與者 -> 待定選擇
	order   []string          // 待定選擇的到達順序（結算取前兩個）
	last    *duelResult
}

func newDuelEngine(players map[string]*Participant) *DuelEngine {
	return &DuelEngine{
		players: players,
		pending: make(map[string]Choice),
	}
}

// Kind 返回遊戲類型
func (d *DuelEngine) Kind() GameKind { return KindMorra }

// Join 猜拳沒有持久屬性
func (d *DuelEngine) Join(p *Participant) {}

// Leave 丟棄離開者的待定選擇
func (d *DuelEngine) Leave(p *Participant) {
	if _, ok := d.pending[p.ID]; !ok {
		return
	}
	delete(d.pending, p.ID)
	for i, id := range d.order {
		if id == p.ID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Reset 清空待定選擇與上一輪結果
func (d *DuelEngine) Reset() {
	d.pending = make(map[string]Choice)
	d.order = nil
	d.last = nil
}

// Apply 處理出拳
//
// 非法選擇靜默忽略。重複出拳覆蓋原選擇（不改變到達順序）。
// 湊滿兩個不同參與者的選擇時在同一次調用內同步結算。
func (d *DuelEngine) Apply(p *Participant, act Action) Effect {
	if act.Name != "morraChoice" {
		return Effect{Kind: EffectNone}
	}

	var raw string
	if err := json.Unmarshal(act.Data, &raw); err != nil {
		return Effect{Kind: EffectNone}
	}

	choice := Choice(raw)
	if choice != ChoiceRock && choice != ChoicePaper && choice != ChoiceScissors {
		return Effect{Kind: EffectNone}
	}

	if _, exists := d.pending[p.ID]; !exists {
		d.order = append(d.order, p.ID)
	}
	d.pending[p.ID] = choice

	if len(d.pending) < 2 {
		// 等待對手，不廣播
		return Effect{Kind: EffectNone}
	}

	d.resolve()
	return Effect{Kind: EffectState}
}

// resolve 結算最先出拳的兩人，然後清空所有待定選擇
func (d *DuelEngine) resolve() {
	idA, idB := d.order[0], d.order[1]
	choiceA, choiceB := d.pending[idA], d.pending[idB]
	nameA, nameB := d.nickname(idA), d.nickname(idB)

	result := &duelResult{}
	switch {
	case choiceA == choiceB:
		result.Text = fmt.Sprintf("平局：%s 與 %s 都出了 %s", nameA, nameB, choiceA)
	case beats[choiceA] == choiceB:
		result.Winner = nameA
		result.Text = fmt.Sprintf("%s 的 %s 勝過 %s 的 %s", nameA, choiceA, nameB, choiceB)
	default:
		result.Winner = nameB
		result.Text = fmt.Sprintf("%s 的 %s 勝過 %s 的 %s", nameB, choiceB, nameA, choiceA)
	}

	d.last = result
	d.pending = make(map[string]Choice)
	d.order = nil
}

// Snapshot 返回已出拳的參與者與上一輪結果
func (d *DuelEngine) Snapshot() map[string]any {
	chosen := make([]string, len(d.order))
	copy(chosen, d.order)

	var last any
	if d.last != nil {
		last = d.last
	}

	return map[string]any{
		"chosen":     chosen,
		"lastResult": last,
	}
}

// InitExtra 猜拳沒有加入者專屬欄位
func (d *DuelEngine) InitExtra(p *Participant) map[string]any {
	return map[string]any{}
}

// PlayerData 名單條目
func (d *DuelEngine) PlayerData(p *Participant) map[string]any {
	return map[string]any{"nickname": p.Nickname}
}

// nickname 依標識查暱稱（參與者可能剛好離開，退回標識本身）
func (d *DuelEngine) nickname(id string) string {
	if p, ok := d.players[id]; ok {
		return p.Nickname
	}
	return id
}
