package engine

import (
	"avocado.town/internal/protocol"
)

type client struct {
	id     string
	out    chan []byte
	close  func()
	closed bool
}

func (e *Engine) handleConnect(req ConnectRequest) {
	if req.ConnID == "" || req.Out == nil {
		return
	}
	if _, ok := e.clients[req.ConnID]; ok {
		e.log.Printf("duplicate connect conn=%s", req.ConnID)
		return
	}
	e.clients[req.ConnID] = &client{id: req.ConnID, out: req.Out, close: req.Close}
}

// enqueue hands b to the client's writer. A full queue marks the client closed
// and drops its transport; the transport then reports the leave.
func (e *Engine) enqueue(c *client, b []byte) {
	if c == nil || c.closed {
		return
	}
	select {
	case c.out <- b:
	default:
		c.closed = true
		e.slow.Add(1)
		e.log.Printf("slow consumer conn=%s queue=%d; closing", c.id, cap(c.out))
		if c.close != nil {
			c.close()
		}
	}
}

func (e *Engine) encode(event string, data any) []byte {
	b, err := protocol.Encode(event, data)
	if err != nil {
		e.log.Printf("encode event=%s err=%v", event, err)
		return nil
	}
	return b
}

func (e *Engine) sendTo(connID, event string, data any) {
	c := e.clients[connID]
	if c == nil {
		return
	}
	if b := e.encode(event, data); b != nil {
		e.enqueue(c, b)
	}
}

// broadcast sends to every client with a live session, skipping except.
// Connections that have not joined yet only receive their own snapshot.
func (e *Engine) broadcast(except, event string, data any) {
	b := e.encode(event, data)
	if b == nil {
		return
	}
	for id, c := range e.clients {
		if id == except {
			continue
		}
		if _, ok := e.world.Player(id); !ok {
			continue
		}
		e.enqueue(c, b)
	}
}

func (e *Engine) broadcastAll(event string, data any) { e.broadcast("", event, data) }

func (e *Engine) sendError(connID, code, msg string) {
	e.rejected.Add(1)
	e.sendTo(connID, protocol.EvError, protocol.ErrorMsg{Code: code, Message: msg})
}
