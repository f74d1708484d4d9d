package gateway

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/coder/websocket"
)

// handleWS streams bus events to a websocket client until it disconnects.
// A slow client loses events rather than stalling publishers; that contract
// lives in the bus itself.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[gateway] websocket accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := g.sys.Events().Subscribe()
	defer cancel()

	ctx := r.Context()
	log.Printf("[gateway] websocket client connected")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				log.Printf("[gateway] websocket client gone: %v", err)
				return
			}
		}
	}
}
