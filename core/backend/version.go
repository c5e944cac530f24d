package backend

import (
	"net/http"

	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/rest"
)

var (
	// Version is the version of the curent build
	Version = "unset"
)

func (b *Backend) handleVersion() {
	logger.Default().Debugln("version")
	logger.Default().Debugln("  handle version route: /version GET")
	b.route("/version", func(w http.ResponseWriter, r *http.Request) {
		rest.Write(w, r, http.StatusOK, map[string]any{"version": Version})
	}, http.MethodGet)
}
