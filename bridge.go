package relink

// transportBridge is the Listener registered for one connection attempt. The Manager compares
// bridges by identity to drop events from connections it has already abandoned.
type transportBridge struct {
	m *Manager
}

func (b *transportBridge) OnOpen(c Conn) {
	b.m.handleOpen(b, c)
}

func (b *transportBridge) OnMessage(c Conn, text string) {
	b.m.handleMessage(b, c, text)
}

func (b *transportBridge) OnClosing(c Conn, code int, reason string) {
	b.m.handleClosing(b, c, code, reason)
}

func (b *transportBridge) OnClosed(c Conn, code int, reason string) {
	b.m.handleClosed(b, c, code, reason)
}

func (b *transportBridge) OnFailure(c Conn, err error) {
	b.m.handleFailure(b, c, err)
}
