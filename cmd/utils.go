package cmd

import (
	"github.com/rubiojr/movieei/pkg/api"
	"github.com/rubiojr/movieei/pkg/auth"
	"github.com/rubiojr/movieei/pkg/config"
	"github.com/rubiojr/movieei/pkg/omdb"
	"github.com/rubiojr/movieei/pkg/search"
)

func newUpstream(cfg *config.Config) *omdb.Client {
	return omdb.NewClient(omdb.Config{
		APIKey:    cfg.Upstream.APIKey,
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.Upstream.Timeout.Duration,
		RateLimit: cfg.Upstream.RateLimit,
		Burst:     cfg.Upstream.Burst,
	})
}

func sessionOptions(cfg *config.Config) search.Options {
	return search.Options{
		Debounce:    cfg.Search.Debounce.Duration,
		Type:        cfg.Search.Type,
		InitialTerm: cfg.Search.InitialTerm,

		RevalidateFirstPage: cfg.Search.RevalidateFirstPage,
	}
}

func serverOptions(cfg *config.Config) api.Options {
	return api.Options{
		Upstream:    newUpstream(cfg),
		CacheMaxAge: cfg.Proxy.CacheMaxAge.Duration,
		DefaultType: cfg.Proxy.DefaultType,
		Search:      sessionOptions(cfg),
		Verifier: auth.NewStaticVerifier(
			cfg.Auth.Username,
			cfg.Auth.Password,
			cfg.Auth.Email,
			cfg.Auth.Name,
		),

		AllowedOrigins: cfg.Proxy.AllowedOrigins,
	}
}
