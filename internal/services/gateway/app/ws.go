package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pumpspares/src_project/internal/wizard"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// HandlePreviewSocket: il client manda {type:update,field,value}, il server
// risponde con {type:preview} ad ogni ricalcolo ed {type:error} se l'update
// viene rifiutato. Un solo goroutine scrive sulla connessione.
func (g *Gateway) HandlePreviewSocket(w http.ResponseWriter, r *http.Request) {
	wz, ok := g.wizardFor(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Warn("preview ws upgrade")
		return
	}
	defer conn.Close()

	previews, cancel := wz.Subscribe()
	defer cancel()

	replies := make(chan wsMessage, 8)
	done := make(chan struct{})
	go g.writePreviews(conn, previews, replies, done)

	if p, ok := wz.Preview(); ok {
		replies <- wsMessage{Type: "preview", Preview: &p}
	}

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.WithError(err).Debug("preview ws read")
			}
			break
		}
		if msg.Type != "" && msg.Type != "update" {
			g.reply(replies, done, wsMessage{Type: "error", Error: "unknown message type " + msg.Type})
			continue
		}
		if err := wz.UpdatePreview(msg.Field, msg.Value); err != nil {
			out := wsMessage{Type: "error", Error: err.Error()}
			var verr *wizard.ValidationError
			if errors.As(err, &verr) {
				out.Fields = verr.Fields
			}
			g.reply(replies, done, out)
			if errors.Is(err, wizard.ErrClosed) {
				break
			}
		}
	}
	close(replies)
	<-done
}

func (g *Gateway) reply(replies chan<- wsMessage, done <-chan struct{}, m wsMessage) {
	select {
	case replies <- m:
	case <-done:
	}
}

func (g *Gateway) writePreviews(conn *websocket.Conn, previews <-chan wizard.Preview, replies <-chan wsMessage, done chan<- struct{}) {
	defer close(done)
	defer conn.Close() // sblocca il reader
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(m wsMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(m); err != nil {
			g.log.WithError(err).Debug("preview ws write")
			return false
		}
		return true
	}

	for {
		select {
		case p, ok := <-previews:
			if !ok {
				// wizard chiuso (scaduto o logout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "wizard closed"), time.Now().Add(wsWriteWait))
				previews = nil
				continue
			}
			if !write(wsMessage{Type: "preview", Preview: &p}) {
				return
			}
		case m, ok := <-replies:
			if !ok {
				return
			}
			if !write(m) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
