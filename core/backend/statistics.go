// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/rest"
)

// resourceStatistics represents information about a resource
type resourceStatistics struct {
	Resource  string `json:"resource"`
	Container string `json:"container"`
	Count     int64  `json:"count"`
}

func (b *Backend) handleStatistics() {
	logger.Default().Debugln("statistics")
	logger.Default().Debugln("  handle statistics route: /statistics GET")
	b.route("/statistics", b.statistics, http.MethodGet)
}

func (b *Backend) statistics(w http.ResponseWriter, r *http.Request) {
	// resources are sorted so that the ETag does not depend on their order
	stats := []resourceStatistics{}
	for _, name := range b.Resources() {
		res := b.resources[name]
		count, err := res.collection.Count(r.Context(), nil)
		if err != nil {
			rest.WriteError(w, r, rest.ServerError(fmt.Errorf("Error 4028: count %s: %w", res.collection.Name(), err)))
			return
		}
		stats = append(stats, resourceStatistics{
			Resource:  name,
			Container: res.collection.Name(),
			Count:     count,
		})
	}

	jsonData, _ := json.Marshal(stats)
	sum := sha1.Sum(jsonData)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	w.Header().Set("Etag", etag)
	if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	rest.Write(w, r, http.StatusOK, map[string]any{"resources": stats})
}

// ifNoneMatchFound returns true if etag is found in ifNoneMatch. The format of ifNoneMatch is one
// of the following:
// If-None-Match: "<etag_value>"
// If-None-Match: "<etag_value>", "<etag_value>"
// If-None-Match: *
func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.Trim(ifNoneMatch, " ")
	if len(ifNoneMatch) == 0 {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	t := strings.Trim(etag, " \"")
	for _, s := range strings.Split(ifNoneMatch, ",") {
		if strings.Trim(s, " \"") == t {
			return true
		}
	}
	return false
}
