// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/url"
	"strconv"
)

// pagination values of a collection request
type page struct {
	limit  int64
	offset int64
	total  int64
}

func (p page) href(u *url.URL, offset int64) map[string]any {
	query := u.Query()
	query.Set("limit", strconv.FormatInt(p.limit, 10))
	query.Set("offset", strconv.FormatInt(offset, 10))
	return map[string]any{"href": u.Path + "?" + query.Encode()}
}

// links returns the HAL links of p. previous and next are omitted at the
// boundaries, an empty collection only links to itself.
func (p page) links(u *url.URL) map[string]any {
	links := map[string]any{"self": p.href(u, p.offset)}
	if p.total == 0 {
		return links
	}
	links["first"] = p.href(u, 0)
	if p.offset > 0 {
		previous := p.offset - p.limit
		if previous < 0 {
			previous = 0
		}
		links["previous"] = p.href(u, previous)
	}
	if p.offset+p.limit < p.total {
		links["next"] = p.href(u, p.offset+p.limit)
	}
	links["last"] = p.href(u, ((p.total-1)/p.limit)*p.limit)
	return links
}

// envelope wraps items in a HAL collection response. Counts and links are
// omitted for pages beyond the last item.
func (p page) envelope(u *url.URL, name string, items []map[string]any) map[string]any {
	embedded := make([]any, len(items))
	for i := range items {
		embedded[i] = items[i]
	}
	body := map[string]any{
		"_embedded": map[string]any{name: embedded},
	}
	if p.total > 0 && p.offset >= p.total {
		return body
	}
	body["_links"] = p.links(u)
	body["total_items"] = p.total
	body["returned_items"] = len(items)
	body["limit"] = p.limit
	body["offset"] = p.offset
	return body
}
