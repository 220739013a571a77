package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/movieei/pkg/api"
	"github.com/urfave/cli/v3"
)

// moreCommand typed on stdin asks the server for the next page.
const moreCommand = ":more"

// LiveCommand connects to the live search socket of a running server and
// writes every state change to stdout as NDJSON.
//
// Each line read from stdin becomes the new search term, except ":more"
// which loads the next page:
//
//	movieei live --query Batman
//	movieei live --query Batman --once | jq '.state.movies[].Title'
func LiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "live",
		Usage: "Stream live search state (NDJSON) from a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server base URL",
				Value: "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:  "query",
				Usage: "Initial search term",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Print init and error frames too, not only state updates",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON instead of raw single-line",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Exit after the first completed result for --query",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return tailSearch(ctx, liveOptions{
				server:     c.String("server"),
				query:      c.String("query"),
				includeAll: c.Bool("all"),
				pretty:     c.Bool("pretty"),
				once:       c.Bool("once"),
				stdin:      os.Stdin,
				stdout:     os.Stdout,
			})
		},
	}
}

type liveOptions struct {
	server     string
	query      string
	includeAll bool
	pretty     bool
	once       bool
	stdin      io.Reader
	stdout     io.Writer
}

func socketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/search/ws"
	return u.String(), nil
}

func tailSearch(ctx context.Context, opts liveOptions) error {
	wsURL, err := socketURL(opts.server)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if opts.query != "" {
		if err := conn.WriteJSON(api.ClientMessage{Type: api.MsgTypeSearch, Term: opts.query}); err != nil {
			return fmt.Errorf("sending search: %w", err)
		}
	}

	// Only this goroutine writes after the initial search.
	go func() {
		if opts.stdin == nil {
			return
		}
		sc := bufio.NewScanner(opts.stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			msg := api.ClientMessage{Type: api.MsgTypeSearch, Term: line}
			if line == moreCommand {
				msg = api.ClientMessage{Type: api.MsgTypeLoadMore}
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		var msg api.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if opts.includeAll || msg.Type == api.MsgTypeState {
			printFrame(opts.stdout, data, opts.pretty)
		}

		if opts.once && msg.State != nil && msg.State.SearchTerm == opts.query &&
			!msg.State.Loading && msg.State.Size > 0 &&
			(len(msg.State.Movies) > 0 || msg.State.Error != "") {
			return nil
		}
	}
}

func printFrame(w io.Writer, data []byte, pretty bool) {
	if pretty {
		var anyJSON any
		if err := json.Unmarshal(data, &anyJSON); err == nil {
			if b, err := json.MarshalIndent(anyJSON, "", "  "); err == nil {
				_, _ = fmt.Fprintln(w, string(b))
				return
			}
		}
	}
	_, _ = fmt.Fprintln(w, strings.TrimSpace(string(data)))
}
