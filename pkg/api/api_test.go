package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rubiojr/movieei/pkg/core"
	"github.com/rubiojr/movieei/pkg/omdb"
)

// fakeUpstream serves ten results per page for every term except
// "nothing", which yields the upstream's not-found envelope.
type fakeUpstream struct {
	*httptest.Server

	mu       sync.Mutex
	total    int
	requests []map[string]string
}

func newFakeUpstream(t *testing.T, total int) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{total: total}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	f.requests = append(f.requests, map[string]string{
		"apikey": q.Get("apikey"),
		"s":      q.Get("s"),
		"page":   q.Get("page"),
		"type":   q.Get("type"),
	})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Write(upstreamBody(q.Get("s"), q.Get("page"), f.total))
}

func (f *fakeUpstream) lastRequest() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeUpstream) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func upstreamBody(term, pageParam string, total int) []byte {
	if term == "nothing" {
		return []byte(`{"Response":"False","Error":"Movie not found!"}`)
	}
	page, err := strconv.Atoi(pageParam)
	if err != nil || page < 1 {
		page = 1
	}

	var movies []core.Movie
	for i := (page - 1) * 10; i < page*10 && i < total; i++ {
		movies = append(movies, core.Movie{
			Title:  fmt.Sprintf("%s %d", term, i+1),
			Year:   "2005",
			ImdbID: fmt.Sprintf("tt%07d", i+1),
			Type:   "movie",
			Poster: "https://example.com/poster.jpg",
		})
	}
	data, _ := json.Marshal(core.Page{
		Search:       movies,
		TotalResults: strconv.Itoa(total),
		Response:     "True",
	})
	return data
}

func newTestServer(t *testing.T, upstream *omdb.Client) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(Options{Upstream: upstream})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func decodeEnvelope(t *testing.T, resp *http.Response) core.Page {
	t.Helper()
	var page core.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return page
}

func TestHandleMovies(t *testing.T) {
	up := newFakeUpstream(t, 25)
	_, ts := newTestServer(t, omdb.NewClient(omdb.Config{APIKey: "secret", BaseURL: up.URL + "/"}))

	t.Run("missing term", func(t *testing.T) {
		for _, query := range []string{"", "?s=", "?page=2"} {
			resp, err := http.Get(ts.URL + "/api/movies" + query)
			if err != nil {
				t.Fatal(err)
			}
			page := decodeEnvelope(t, resp)
			resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%q: status = %d, want 400", query, resp.StatusCode)
			}
			if page.Response != "False" || page.Error != MsgSearchTermRequired {
				t.Errorf("%q: unexpected body %+v", query, page)
			}
		}
		if up.requestCount() != 0 {
			t.Errorf("upstream called %d times for invalid requests", up.requestCount())
		}
	})

	t.Run("relays upstream body", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/movies?s=Batman&page=2&type=movie")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body %s", resp.StatusCode, body)
		}
		if got := resp.Header.Get("Cache-Control"); got != "public, max-age=300" {
			t.Errorf("Cache-Control = %q", got)
		}
		if want := upstreamBody("Batman", "2", 25); string(body) != string(want) {
			t.Errorf("body = %s\nwant %s", body, want)
		}

		req := up.lastRequest()
		want := map[string]string{"apikey": "secret", "s": "Batman", "page": "2", "type": "movie"}
		for k, v := range want {
			if req[k] != v {
				t.Errorf("upstream %s = %q, want %q", k, req[k], v)
			}
		}
	})

	t.Run("defaults page and type", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/movies?s=Marvel")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		req := up.lastRequest()
		if req["page"] != "1" || req["type"] != "movie" {
			t.Errorf("page=%q type=%q", req["page"], req["type"])
		}
	})

	t.Run("upstream logical failure is relayed", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/movies?s=nothing")
		if err != nil {
			t.Fatal(err)
		}
		page := decodeEnvelope(t, resp)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		if !page.Failed() || page.Error != "Movie not found!" {
			t.Errorf("unexpected body %+v", page)
		}
	})

	t.Run("api key never echoed", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/movies?s=Batman")
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if strings.Contains(string(body), "secret") {
			t.Error("response contains the api key")
		}
	})
}

func TestHandleMoviesConfigurationError(t *testing.T) {
	up := newFakeUpstream(t, 5)

	tests := []struct {
		name     string
		upstream *omdb.Client
	}{
		{"nil upstream", nil},
		{"missing key", omdb.NewClient(omdb.Config{BaseURL: up.URL})},
		{"missing base url", omdb.NewClient(omdb.Config{APIKey: "k"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, tt.upstream)
			resp, err := http.Get(ts.URL + "/api/movies?s=Batman")
			if err != nil {
				t.Fatal(err)
			}
			page := decodeEnvelope(t, resp)
			resp.Body.Close()

			if resp.StatusCode != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", resp.StatusCode)
			}
			if page.Error != MsgConfigError || page.Response != "False" {
				t.Errorf("unexpected body %+v", page)
			}
		})
	}

	if up.requestCount() != 0 {
		t.Errorf("upstream called %d times", up.requestCount())
	}
}

func TestHandleMoviesFetchFailure(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer broken.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	downURL := down.URL
	down.Close()

	for name, base := range map[string]string{"non-json": broken.URL, "unreachable": downURL} {
		t.Run(name, func(t *testing.T) {
			_, ts := newTestServer(t, omdb.NewClient(omdb.Config{APIKey: "k", BaseURL: base}))
			resp, err := http.Get(ts.URL + "/api/movies?s=Batman")
			if err != nil {
				t.Fatal(err)
			}
			page := decodeEnvelope(t, resp)
			resp.Body.Close()

			if resp.StatusCode != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", resp.StatusCode)
			}
			if page.Error != MsgFetchFailed {
				t.Errorf("Error = %q, want %q", page.Error, MsgFetchFailed)
			}
			if resp.Header.Get("Cache-Control") != "" {
				t.Error("error responses must not be cacheable")
			}
		})
	}
}

func TestSetUpstream(t *testing.T) {
	up := newFakeUpstream(t, 3)
	srv, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/movies?s=Batman")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d before configuring upstream", resp.StatusCode)
	}

	srv.SetUpstream(omdb.NewClient(omdb.Config{APIKey: "k", BaseURL: up.URL}))

	resp, err = http.Get(ts.URL + "/api/movies?s=Batman")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d after configuring upstream", resp.StatusCode)
	}
}

func TestMoviesMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/movies?s=Batman", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMoviesGzip(t *testing.T) {
	up := newFakeUpstream(t, 25)
	_, ts := newTestServer(t, omdb.NewClient(omdb.Config{APIKey: "k", BaseURL: up.URL}))

	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	req, _ := http.NewRequest("GET", ts.URL+"/api/movies?s=Batman", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "public, max-age=300" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestRequestID(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("missing generated request id")
	}

	req, _ := http.NewRequest("GET", ts.URL+"/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestCorsPreflight(t *testing.T) {
	_, ts := newTestServer(t, nil)

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/api/movies", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Version == "" || health.Timestamp.IsZero() {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestHandleLogin(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"valid", `{"email":"admin","password":"123"}`, http.StatusOK, ""},
		{"missing", `{"email":"","password":""}`, http.StatusBadRequest, "MISSING_CREDENTIALS"},
		{"bad email", `{"email":"root","password":"123"}`, http.StatusUnauthorized, "INVALID_EMAIL"},
		{"bad password", `{"email":"admin","password":"x"}`, http.StatusUnauthorized, "INVALID_PASSWORD"},
		{"malformed", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}

			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if tt.status == http.StatusOK {
				if body["id"] != "1" || body["email"] != "admin@example.com" || body["name"] != "Admin User" {
					t.Errorf("unexpected user %v", body)
				}
				return
			}
			if body["code"] != tt.code {
				t.Errorf("code = %q, want %q", body["code"], tt.code)
			}
		})
	}
}
