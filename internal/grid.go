package internal

import "encoding/json"

// 井字棋引擎
//
// 核心不變量：
//   1. 每回合只有持有當前標記的玩家可以落子
//   2. 棋盤只透過驗證後的落子變更
//   3. 標記分配只取決於當前佔用情況：X 空缺給 X，否則 O 空缺給 O，
//      否則觀戰者（與加入順序無關，只看佔用）
//
// 標記回收策略：標記在房間生命週期內不回收。持有 X 的玩家離開後，
// X 在這個房間裡退役，後來的加入者仍然是觀戰者；reset 清空棋盤
// 但不清空已分配的標記。

// winLines 8 條勝利線（3 橫、3 縱、2 斜）
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// GridEngine 井字棋引擎
type GridEngine struct {
	players map[string]*Participant

	board    [9]Symbol
	turn     Symbol
	over     bool
	winner   string // "X" / "O" / "draw"，空字串表示無
	retiredX bool   // X 曾被分配過（即使持有者已離開）
	retiredO bool
}

func newGridEngine(players map[string]*Participant) *GridEngine {
	return &GridEngine{
		players: players,
		turn:    SymbolX,
	}
}

// Kind 返回遊戲類型
func (g *GridEngine) Kind() GameKind { return KindTris }

// Join 分配標記
func (g *GridEngine) Join(p *Participant) {
	switch {
	case !g.retiredX:
		p.Symbol = SymbolX
		g.retiredX = true
	case !g.retiredO:
		p.Symbol = SymbolO
		g.retiredO = true
	default:
		p.Symbol = SymbolNone
	}
}

// Leave 標記不回收，無需清理
func (g *GridEngine) Leave(p *Participant) {}

// Reset 清空棋盤，輪到 X，保留標記分配
func (g *GridEngine) Reset() {
	g.board = [9]Symbol{}
	g.turn = SymbolX
	g.over = false
	g.winner = ""
}

// Apply 處理落子
//
// 以下情況靜默拒絕（無狀態變更、無廣播）：
//   - 遊戲已結束
//   - 觀戰者落子
//   - 不是該標記的回合
//   - 格子索引越界或已被佔用
func (g *GridEngine) Apply(p *Participant, act Action) Effect {
	if act.Name != "makeMove" {
		return Effect{Kind: EffectNone}
	}

	var index int
	if err := json.Unmarshal(act.Data, &index); err != nil {
		return Effect{Kind: EffectNone}
	}

	if g.over {
		return Effect{Kind: EffectNone}
	}
	if p.Symbol == SymbolNone {
		return Effect{Kind: EffectNone}
	}
	if p.Symbol != g.turn {
		return Effect{Kind: EffectNone}
	}
	if index < 0 || index > 8 {
		return Effect{Kind: EffectNone}
	}
	if g.board[index] != SymbolNone {
		return Effect{Kind: EffectNone}
	}

	g.board[index] = p.Symbol

	if winner := g.checkWinner(); winner != "" {
		g.over = true
		g.winner = winner
	} else {
		// 換手
		if g.turn == SymbolX {
			g.turn = SymbolO
		} else {
			g.turn = SymbolX
		}
	}

	return Effect{Kind: EffectState}
}

// checkWinner 終局判定
//
// 檢查 8 條勝利線；三格同標記即勝。無勝利線且 9 格全滿為平局。
func (g *GridEngine) checkWinner() string {
	for _, line := range winLines {
		a, b, c := g.board[line[0]], g.board[line[1]], g.board[line[2]]
		if a != SymbolNone && a == b && a == c {
			return string(a)
		}
	}

	for _, cell := range g.board {
		if cell == SymbolNone {
			return ""
		}
	}
	return "draw"
}

// Snapshot 返回棋盤狀態
func (g *GridEngine) Snapshot() map[string]any {
	board := make([]any, 9)
	for i, cell := range g.board {
		if cell == SymbolNone {
			board[i] = nil
		} else {
			board[i] = string(cell)
		}
	}

	var winner any
	if g.winner != "" {
		winner = g.winner
	}

	return map[string]any{
		"board":       board,
		"currentTurn": string(g.turn),
		"gameOver":    g.over,
		"winner":      winner,
	}
}

// InitExtra 加入者本人的標記（觀戰者為 null）
func (g *GridEngine) InitExtra(p *Participant) map[string]any {
	var symbol any
	if p.Symbol != SymbolNone {
		symbol = string(p.Symbol)
	}
	return map[string]any{"symbol": symbol}
}

// PlayerData 名單條目
func (g *GridEngine) PlayerData(p *Participant) map[string]any {
	var symbol any
	if p.Symbol != SymbolNone {
		symbol = string(p.Symbol)
	}
	return map[string]any{
		"nickname": p.Nickname,
		"symbol":   symbol,
	}
}
