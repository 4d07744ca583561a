package internal

// Session 每連接的會話上下文
//
// 顯式的值物件，在每個入站事件處理中傳遞，而不是掛在連接
// 物件上的可變屬性。ConnID 同時是參與者標識；RoomID 為空
// 表示尚未加入任何房間。
type Session struct {
	ConnID string
	RoomID string
}

// InRoom 是否已加入房間
func (s Session) InRoom() bool {
	return s.RoomID != ""
}
