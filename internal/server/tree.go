package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Tree is the process supervisor. Background work (refresh, invalidation
// subscriber, cache janitor) and the API servers run under separate child
// supervisors so a crash loop in one layer does not restart the other.
type Tree struct {
	root       *suture.Supervisor
	background *suture.Supervisor
	api        *suture.Supervisor
}

// NewTree builds the tree with suture's default failure parameters.
func NewTree(log *slog.Logger, shutdownTimeout time.Duration) *Tree {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	handler := &sutureslog.Handler{Logger: log}

	root := suture.New("pupmatch", suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   shutdownTimeout,
	})
	background := suture.New("background", suture.Spec{Timeout: shutdownTimeout})
	api := suture.New("api", suture.Spec{Timeout: shutdownTimeout})
	root.Add(background)
	root.Add(api)

	return &Tree{root: root, background: background, api: api}
}

func (t *Tree) AddBackground(svc suture.Service) suture.ServiceToken { return t.background.Add(svc) }

func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken { return t.api.Add(svc) }

// Serve blocks until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error { return t.root.Serve(ctx) }

// ServeBackground starts the tree and returns its exit channel.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error { return t.root.ServeBackground(ctx) }
