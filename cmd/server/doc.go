// 多房間即時小遊戲服務器。
//
// 支援三種小遊戲，由調用方提供的房間代碼隔離成獨立會話：
//   - tris：井字棋（3×3 棋盤，X/O 輪流，第三人起觀戰）
//   - morra：猜拳（兩人出拳即時結算）
//   - amongus：自由移動競技場（隨機抽選一名臥底）
//
// # 通信協議
//
// 單一 WebSocket 端點 /ws；每條消息是一個 JSON 信封
// {"event": ..., "data": ...}。
//
// 客戶端 → 服務器：
//   - joinRoom {roomId, nickname, gameType?}
//   - makeMove <0-8>
//   - morraChoice "rock"|"paper"|"scissors"
//   - move {x, y}
//   - reset
//
// 服務器 → 客戶端：
//   - errorMessage：加入驗證失敗（空房間代碼、類型不符）
//   - init：加入成功後的完整初始快照（僅發給加入者）
//   - playersUpdate：名單變更
//   - gameState：狀態變更後的完整快照
//   - playerMoved：競技場的輕量位置更新
//
// 架構設計
//
// 分層與所有權：
//   - Registry 層：獨佔所有房間的創建、查找、銷毀
//   - Room 層：每房間一把鎖，獨佔參與者映射與遊戲引擎
//   - Engine 層：三種遊戲實現同一個介面，Room 不感知規則
//   - Hub/Dispatcher 層：連接管理與 fire-and-forget 廣播
//
// 斷線視為普通輸入事件：移除參與者，人數歸零時房間立即銷毀，
// 狀態不可恢復。不做持久化、認證與跨進程擴展。
//
// 配置選項
//
// 支援多種運行時配置：
//   - -config：YAML 配置文件路徑
//   - -port / PORT 環境變數：監聽端口（預設 3000）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
package main
