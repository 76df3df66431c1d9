package engine

import (
	"context"

	"github.com/law-makers/harvest/pkg/models"
)

// Fetcher turns a URL into a PageCapture. Implementations return a
// FetchError or TimeoutError for per-page failures.
type Fetcher interface {
	// Fetch retrieves the page at url
	Fetch(ctx context.Context, url string) (*models.PageCapture, error)

	// Name returns the name of the fetcher implementation
	Name() string
}

// Session is a live browser owned by one job. Pages are opened and closed
// per Fetch; Release closes everything and must be safe to call twice.
type Session interface {
	Fetcher
	Release() error
}

// Browser hands out sessions. Acquire fails with a SetupError when no
// browser process can be started.
type Browser interface {
	Acquire(ctx context.Context) (Session, error)
}
