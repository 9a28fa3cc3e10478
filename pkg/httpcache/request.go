package httpcache

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/restcache/respcache/pkg/cachekey"
)

// query parameters recognized as sort/pagination controls; everything
// else is treated as a filter predicate.
const (
	paramSort  = "sort"
	paramOrder = "order"
	paramPage  = "page"
	paramLimit = "limit"
)

// requestKey derives the cache key for a read request from its path and
// query parameters. It reports false for paths that do not map to a
// resource read (no resource segment, nested sub-resources).
func (m *Middleware) requestKey(r *http.Request) (cachekey.Key, bool) {
	resource, identifier, ok := m.parseResource(r.URL.Path)
	if !ok {
		return cachekey.Key{}, false
	}

	switch identifier {
	case "":
		return cachekey.Key{
			Resource: resource,
			Op:       cachekey.OpList,
			Query:    descriptorFromQuery(r.URL.Query()),
		}, true
	case "count":
		return cachekey.Key{
			Resource: resource,
			Op:       cachekey.OpCount,
			Query:    descriptorFromQuery(r.URL.Query()),
		}, true
	default:
		return cachekey.Key{
			Resource:   resource,
			Op:         cachekey.OpGet,
			Identifier: identifier,
		}, true
	}
}

// parseResource extracts the resource name and optional identifier from
// a request path. The configured path prefix and a leading API version
// segment (v1, v2, ...) are skipped; the first remaining segment is the
// resource, lower-cased.
func (m *Middleware) parseResource(path string) (resource, identifier string, ok bool) {
	path = strings.TrimPrefix(path, m.cfg.PathPrefix)

	segs := make([]string, 0, 4)
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) > 0 && isVersionSegment(segs[0]) {
		segs = segs[1:]
	}

	switch len(segs) {
	case 0:
		return "", "", false
	case 1:
		return strings.ToLower(segs[0]), "", true
	case 2:
		return strings.ToLower(segs[0]), segs[1], true
	default:
		// Nested sub-resources are not cacheable at this granularity.
		return "", "", false
	}
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || (s[0] != 'v' && s[0] != 'V') {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

// descriptorFromQuery builds a query descriptor from request query
// parameters. Returns nil for parameter-less requests so the key
// collapses to the canonical "all" selector.
func descriptorFromQuery(values url.Values) *cachekey.QueryDescriptor {
	if len(values) == 0 {
		return nil
	}

	desc := &cachekey.QueryDescriptor{}
	for name := range values {
		value := values.Get(name)
		switch name {
		case paramSort:
			desc.SortField = value
		case paramOrder:
			if strings.EqualFold(value, "desc") {
				desc.SortDir = "desc"
			} else {
				desc.SortDir = "asc"
			}
		case paramPage:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				desc.Page = n
			}
		case paramLimit:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				desc.Limit = n
			}
		default:
			if desc.Filters == nil {
				desc.Filters = make(map[string]string)
			}
			desc.Filters[name] = value
		}
	}
	return desc
}
