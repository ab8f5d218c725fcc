package consensus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/praizmiky/massa/log"
	"github.com/praizmiky/massa/metrics"
)

// WSServer exposes the worker's four broadcast sinks over a websocket, gated
// by ws_enabled: the three named in spec.md §6 ("subscribe_new_blocks /
// new_block_headers / new_filled_blocks") plus the missing-blocks wishlist. Each upgraded connection subscribes to exactly one sink for
// its lifetime, chosen by the request path.
type WSServer struct {
	worker   *Worker
	upgrader websocket.Upgrader
	log      *log.Logger
}

// NewWSServer wires a WSServer over worker's broadcasters. The upgrader
// accepts any origin, matching a node meant to be reverse-proxied rather
// than browser-facing directly.
func NewWSServer(worker *Worker) *WSServer {
	return &WSServer{
		worker: worker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.Default().Module("consensus.ws"),
	}
}

// ServeNewBlocks upgrades r and streams active ActiveBlock ids as they are
// published, until the client disconnects.
func (s *WSServer) ServeNewBlocks(w http.ResponseWriter, r *http.Request) {
	ch, id := s.worker.newBlocks.Subscribe()
	defer s.worker.newBlocks.Unsubscribe(id)
	s.stream(w, r, func() (any, bool) {
		blockID, ok := <-ch
		return blockID, ok
	})
}

// ServeNewBlockHeaders upgrades r and streams accepted headers.
func (s *WSServer) ServeNewBlockHeaders(w http.ResponseWriter, r *http.Request) {
	ch, id := s.worker.newBlockHeaders.Subscribe()
	defer s.worker.newBlockHeaders.Unsubscribe(id)
	s.stream(w, r, func() (any, bool) {
		header, ok := <-ch
		return header, ok
	})
}

// ServeNewFilledBlocks upgrades r and streams filled blocks (header plus
// operations).
func (s *WSServer) ServeNewFilledBlocks(w http.ResponseWriter, r *http.Request) {
	ch, id := s.worker.newFilledBlocks.Subscribe()
	defer s.worker.newFilledBlocks.Unsubscribe(id)
	s.stream(w, r, func() (any, bool) {
		filled, ok := <-ch
		return filled, ok
	})
}

// ServeMissingBlocks upgrades r and streams block ids the worker would like
// the protocol layer to fetch (spec.md §6's wishlist traffic), deduped by
// Worker's Wishlist so a block named by several pending headers streams once.
func (s *WSServer) ServeMissingBlocks(w http.ResponseWriter, r *http.Request) {
	ch, id := s.worker.missingBlocks.Subscribe()
	defer s.worker.missingBlocks.Unsubscribe(id)
	s.stream(w, r, func() (any, bool) {
		blockID, ok := <-ch
		return blockID, ok
	})
}

// stream upgrades the connection then repeatedly calls next, writing each
// value as a JSON text frame until next reports the channel closed or the
// write fails (client gone). A write is bounded by max_send_wait so one
// slow client cannot stall the worker's broadcast loop indefinitely.
func (s *WSServer) stream(w http.ResponseWriter, r *http.Request, next func() (any, bool)) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WSSubscribers.Inc()
	defer metrics.WSSubscribers.Dec()

	maxSendWait := s.worker.cfg.MaxSendWait
	if maxSendWait <= 0 {
		maxSendWait = 500 * time.Millisecond
	}

	for {
		value, ok := next()
		if !ok {
			return
		}
		payload, err := json.Marshal(value)
		if err != nil {
			s.log.Warn("failed to marshal broadcast event", "error", err)
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(maxSendWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
