package backend

import (
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// handleCompression gzips or deflates responses for clients which accept it
func (b *Backend) handleCompression() {
	b.router.Use(mux.MiddlewareFunc(handlers.CompressHandler))
}
