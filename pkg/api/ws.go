package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/movieei/pkg/core"
	"github.com/rubiojr/movieei/pkg/log"
	"github.com/rubiojr/movieei/pkg/omdb"
	"github.com/rubiojr/movieei/pkg/paging"
	"github.com/rubiojr/movieei/pkg/search"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 4096
)

// newUpgrader accepts any origin when allowed is empty. Otherwise the
// Origin header must match one entry exactly; requests without one (non
// browser clients) are let through.
func newUpgrader(allowed []string) websocket.Upgrader {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[strings.TrimRight(o, "/")] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(origins) == 0 || origin == "" {
				return true
			}
			return origins[origin]
		},
	}
}

// sessionFetcher resolves the upstream on every fetch so sessions pick up
// configuration reloads.
func (s *Server) sessionFetcher() paging.Fetcher {
	return paging.FetcherFunc(func(ctx context.Context, key core.PageKey) (*core.Page, error) {
		upstream := s.currentUpstream()
		if upstream == nil {
			return nil, omdb.ErrNotConfigured
		}
		return upstream.Fetch(ctx, key)
	})
}

// HandleSearchSocket runs one live search session per connection. Client
// messages drive the session (see the MsgType constants); every state change
// is pushed back as a snapshot.
func (s *Server) HandleSearchSocket(w http.ResponseWriter, r *http.Request) {
	l := log.ForService("ws")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warnf("Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := search.NewSession(ctx, s.sessionFetcher(), s.search)
	defer sess.Close()

	subID, updates := sess.Subscribe()
	defer sess.Unsubscribe(subID)

	snap := sess.Snapshot()
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(ServerMessage{Type: MsgTypeInit, State: &snap}); err != nil {
		l.Debugf("Writing init: %v", err)
		return
	}

	replies := make(chan ServerMessage, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, conn, updates, replies)
	}()

	s.readLoop(conn, sess, replies, writerDone)
	cancel()
	<-writerDone
	l.Debugf("Connection from %s closed", r.RemoteAddr)
}

func (s *Server) readLoop(conn *websocket.Conn, sess *search.Session, replies chan<- ServerMessage, writerDone <-chan struct{}) {
	l := log.ForService("ws")

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	reply := func(msg ServerMessage) bool {
		select {
		case replies <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.Warnf("Read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if !reply(ServerMessage{Type: MsgTypeError, Error: "invalid message"}) {
				return
			}
			continue
		}

		switch msg.Type {
		case MsgTypeSearch:
			sess.SetSearchTerm(msg.Term)
		case MsgTypeLoadMore:
			if !sess.LoadMore() {
				l.Debugf("load_more ignored")
			}
		case MsgTypeRevalidate:
			sess.Revalidate()
		default:
			if !reply(ServerMessage{Type: MsgTypeError, Error: "unknown message type: " + msg.Type}) {
				return
			}
		}
	}
}

// writeLoop is the only writer on conn after the init message.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, updates <-chan search.Snapshot, replies <-chan ServerMessage) {
	l := log.ForService("ws")
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	write := func(msg ServerMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			l.Debugf("Write error: %v", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if !write(ServerMessage{Type: MsgTypeState, State: &snap}) {
				conn.Close()
				return
			}
		case msg := <-replies:
			if !write(msg) {
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
