package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/movieei/pkg/api"
	"github.com/rubiojr/movieei/pkg/config"
	"github.com/rubiojr/movieei/pkg/core"
	"github.com/rubiojr/movieei/pkg/paging"
	"github.com/rubiojr/movieei/pkg/search"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	movieStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Underline(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("32")).
			Margin(1, 0, 0, 0)
)

type searchOptions struct {
	query    string
	typ      string
	pages    int
	server   string
	parallel bool
}

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search movies from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search term (defaults to search.initial_term)",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Result type: movie, series or episode",
			},
			&cli.IntFlag{
				Name:  "pages",
				Usage: "Number of result pages to load",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "Search through a running movieei server (e.g. http://localhost:8080) instead of the upstream API",
			},
			&cli.BoolFlag{
				Name:  "parallel",
				Usage: "Fetch requested pages concurrently",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSearch(ctx, c.String("config"), searchOptions{
				query:    c.String("query"),
				typ:      c.String("type"),
				pages:    c.Int("pages"),
				server:   c.String("server"),
				parallel: c.Bool("parallel"),
			})
		},
	}
}

func runSearch(ctx context.Context, configPath string, opts searchOptions) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.query == "" {
		opts.query = cfg.Search.InitialTerm
	}
	if opts.query == "" {
		return errors.New("a search term is required, use --query")
	}
	if opts.typ == "" {
		opts.typ = cfg.Search.Type
	}
	if !core.ValidType(opts.typ) {
		return fmt.Errorf("invalid type %q: use movie, series or episode", opts.typ)
	}
	if opts.pages < 1 {
		opts.pages = 1
	}

	var fetcher paging.Fetcher
	if opts.server != "" {
		fetcher = api.NewClient(opts.server, cfg.Upstream.Timeout.Duration)
	} else {
		upstream := newUpstream(cfg)
		if !upstream.Configured() {
			return errors.New("upstream not configured: set OMDB_API_KEY or [upstream] api_key, or use --server")
		}
		fetcher = upstream
	}

	sess := search.NewSession(ctx, fetcher, search.Options{
		Type:        opts.typ,
		InitialTerm: opts.query,
		Parallel:    opts.parallel,
	})
	defer sess.Close()

	sess.Wait()
	for sess.Snapshot().Size < opts.pages && sess.LoadMore() {
		sess.Wait()
	}

	snap := sess.Snapshot()
	fmt.Print(formatSearchOutput(snap, opts.typ))
	if snap.Error != "" && len(snap.Movies) == 0 {
		return fmt.Errorf("search failed: %s", snap.Error)
	}
	return nil
}

func formatSearchOutput(snap search.Snapshot, typ string) string {
	var out strings.Builder
	label := cases.Title(language.English).String(typ)

	out.WriteString(titleStyle.Render(fmt.Sprintf("%s results for %q", label, snap.SearchTerm)))
	out.WriteString("\n\n")

	if snap.Error != "" {
		out.WriteString(errorStyle.Render(snap.Error))
		out.WriteString("\n")
		if len(snap.Movies) == 0 {
			return out.String()
		}
		out.WriteString("\n")
	}

	for i, m := range snap.Movies {
		out.WriteString(fmt.Sprintf("%3d. %s %s\n", i+1, movieStyle.Render(m.Title), metaStyle.Render("("+m.Year+")")))
		meta := []string{cases.Title(language.English).String(m.Type), m.ItemKey(i)}
		out.WriteString("     " + metaStyle.Render(strings.Join(meta, " · ")) + "\n")
		if m.HasPoster() {
			out.WriteString("     " + urlStyle.Render(m.Poster) + "\n")
		}
	}

	summary := fmt.Sprintf("Showing %d of %d results", len(snap.Movies), snap.TotalResults)
	if snap.HasMore {
		summary += fmt.Sprintf(" (use --pages %d for more)", snap.Size+1)
	}
	out.WriteString(summaryStyle.Render(summary))
	out.WriteString("\n")
	return out.String()
}
