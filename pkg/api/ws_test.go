package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/movieei/pkg/omdb"
	"github.com/rubiojr/movieei/pkg/search"
)

func newSocketServer(t *testing.T, total int, opts search.Options) *httptest.Server {
	t.Helper()
	return newSocketServerWith(t, newFakeUpstream(t, total), Options{Search: opts})
}

func newSocketServerWith(t *testing.T, up *fakeUpstream, opts Options) *httptest.Server {
	t.Helper()
	opts.Upstream = omdb.NewClient(omdb.Config{APIKey: "k", BaseURL: up.URL})
	srv := NewServer(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	u, _ := url.Parse(ts.URL)
	u.Scheme = "ws"
	u.Path = "/api/search/ws"
	return u.String()
}

func wsDial(t *testing.T, ts *httptest.Server) (*websocket.Conn, ServerMessage) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var msg ServerMessage
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read init: %v", err)
	}
	if msg.Type != MsgTypeInit {
		t.Fatalf("expected init message, got %q", msg.Type)
	}
	return conn, msg
}

// waitState reads messages until a state satisfies cond.
func waitState(t *testing.T, conn *websocket.Conn, cond func(search.Snapshot) bool) search.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var msg ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for state: %v", err)
		}
		if msg.Type == MsgTypeState && msg.State != nil && cond(*msg.State) {
			return *msg.State
		}
	}
}

func TestSearchSocketInitialState(t *testing.T) {
	ts := newSocketServer(t, 0, search.Options{Debounce: 10 * time.Millisecond})

	_, init := wsDial(t, ts)
	if init.State == nil {
		t.Fatal("init without state")
	}
	if init.State.SearchTerm != "" || len(init.State.Movies) != 0 || init.State.Loading {
		t.Errorf("unexpected initial state %+v", init.State)
	}
}

func TestSearchSocketSearchAndLoadMore(t *testing.T) {
	ts := newSocketServer(t, 25, search.Options{Debounce: 10 * time.Millisecond})
	conn, _ := wsDial(t, ts)

	if err := conn.WriteJSON(ClientMessage{Type: MsgTypeSearch, Term: "Batman"}); err != nil {
		t.Fatal(err)
	}
	state := waitState(t, conn, func(s search.Snapshot) bool {
		return !s.Loading && len(s.Movies) == 10
	})
	if state.TotalResults != 25 || !state.HasMore || state.SearchTerm != "Batman" {
		t.Fatalf("unexpected state after search %+v", state)
	}

	if err := conn.WriteJSON(ClientMessage{Type: MsgTypeLoadMore}); err != nil {
		t.Fatal(err)
	}
	state = waitState(t, conn, func(s search.Snapshot) bool {
		return !s.Loading && len(s.Movies) == 20
	})
	if state.Size != 2 || !state.HasMore {
		t.Fatalf("unexpected state after load_more %+v", state)
	}
	if state.Movies[10].Title != "Batman 11" {
		t.Errorf("movie 11 = %q", state.Movies[10].Title)
	}

	if err := conn.WriteJSON(ClientMessage{Type: MsgTypeLoadMore}); err != nil {
		t.Fatal(err)
	}
	state = waitState(t, conn, func(s search.Snapshot) bool {
		return !s.Loading && len(s.Movies) == 25
	})
	if state.HasMore {
		t.Error("HasMore should be false once every result is loaded")
	}
}

func TestSearchSocketUpstreamError(t *testing.T) {
	ts := newSocketServer(t, 25, search.Options{Debounce: 10 * time.Millisecond})
	conn, _ := wsDial(t, ts)

	if err := conn.WriteJSON(ClientMessage{Type: MsgTypeSearch, Term: "nothing"}); err != nil {
		t.Fatal(err)
	}
	state := waitState(t, conn, func(s search.Snapshot) bool {
		return !s.Loading && s.Error != ""
	})
	if state.Error != "Movie not found!" || len(state.Movies) != 0 || state.HasMore {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestSearchSocketBadFrames(t *testing.T) {
	ts := newSocketServer(t, 0, search.Options{})
	conn, _ := wsDial(t, ts)

	for _, frame := range []string{"not json", `{"type":"dance"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatal(err)
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != MsgTypeError || msg.Error == "" {
			t.Errorf("frame %q: got %+v, want error message", frame, msg)
		}
	}
}

func TestSearchSocketInitialTerm(t *testing.T) {
	ts := newSocketServer(t, 12, search.Options{InitialTerm: "Marvel", Debounce: time.Hour})
	conn, init := wsDial(t, ts)

	if init.State.SearchTerm != "Marvel" {
		t.Fatalf("init term = %q", init.State.SearchTerm)
	}
	if !init.State.Loading && len(init.State.Movies) == 10 {
		return
	}
	state := waitState(t, conn, func(s search.Snapshot) bool {
		return !s.Loading && len(s.Movies) == 10
	})
	if state.TotalResults != 12 {
		t.Errorf("total = %d", state.TotalResults)
	}
}

func TestSearchSocketRevalidate(t *testing.T) {
	up := newFakeUpstream(t, 25)
	ts := newSocketServerWith(t, up, Options{Search: search.Options{Debounce: 10 * time.Millisecond}})
	conn, _ := wsDial(t, ts)

	if err := conn.WriteJSON(ClientMessage{Type: MsgTypeSearch, Term: "Batman"}); err != nil {
		t.Fatal(err)
	}
	waitState(t, conn, func(s search.Snapshot) bool { return !s.Loading && len(s.Movies) == 10 })
	if err := conn.WriteJSON(ClientMessage{Type: MsgTypeLoadMore}); err != nil {
		t.Fatal(err)
	}
	waitState(t, conn, func(s search.Snapshot) bool { return !s.Loading && len(s.Movies) == 20 })

	up.mu.Lock()
	before := len(up.requests)
	up.mu.Unlock()

	if err := conn.WriteJSON(ClientMessage{Type: MsgTypeRevalidate}); err != nil {
		t.Fatal(err)
	}

	fresh := func() []map[string]string {
		up.mu.Lock()
		defer up.mu.Unlock()
		return append([]map[string]string(nil), up.requests[before:]...)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(fresh()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Give a stray first page request time to show up.
	time.Sleep(50 * time.Millisecond)

	reqs := fresh()
	if len(reqs) != 1 || reqs[0]["page"] != "2" || reqs[0]["s"] != "Batman" {
		t.Fatalf("revalidate requests = %v, want only Batman page 2", reqs)
	}
	state := waitState(t, conn, func(s search.Snapshot) bool { return !s.Loading && len(s.Movies) == 20 })
	if state.Movies[10].Title != "Batman 11" {
		t.Errorf("movie 11 = %q", state.Movies[10].Title)
	}
}

func TestSearchSocketAllowedOrigins(t *testing.T) {
	ts := newSocketServerWith(t, newFakeUpstream(t, 0), Options{
		AllowedOrigins: []string{"http://ok.example/"},
	})

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"listed origin", "http://ok.example", true},
		{"no origin header", "", true},
		{"other origin", "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("expected the handshake to be rejected")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("expected 403, got %v", resp)
			}
		})
	}
}
