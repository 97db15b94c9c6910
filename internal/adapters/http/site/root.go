// Package site serves the embedded browser overlay page.
package site

import (
	"context"
	"errors"
	"net/http"
)

// Error constants
var (
	ErrServe = errors.New("overlay page serve failed")
)

// Register attaches the embedded overlay page routes to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	files := http.FileServer(FS())
	mux.Handle("/", files)
}
