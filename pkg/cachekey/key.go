// Package cachekey provides deterministic cache key generation for
// resource-oriented read requests, glob patterns for bulk invalidation,
// and ETag fingerprints for conditional requests.
package cachekey

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Operation is the kind of read a key refers to.
type Operation string

const (
	// OpGet is a single-resource read by identifier.
	OpGet Operation = "get"

	// OpList is a collection read, possibly filtered, sorted and paged.
	OpList Operation = "list"

	// OpCount is a collection count, possibly filtered.
	OpCount Operation = "count"
)

// descriptorHashThreshold is the descriptor length above which the
// canonical form is replaced by its digest to keep keys bounded.
const descriptorHashThreshold = 96

// QueryDescriptor captures the semantic query parameters of a
// collection read. The zero value describes an unfiltered, unsorted,
// unpaged list.
type QueryDescriptor struct {
	// Filters are field=value equality predicates.
	Filters map[string]string

	// SortField and SortDir describe the sort order ("asc" or "desc").
	SortField string
	SortDir   string

	// Page and Limit describe pagination; zero means unset.
	Page  int
	Limit int
}

// canonical serializes the descriptor into its canonical compact form.
// Filters are sorted lexicographically by name so the result is
// invariant to the order parameters were supplied in the request.
// Names and values are query-escaped so delimiter characters inside
// them cannot recreate another descriptor's serialization.
func (q *QueryDescriptor) canonical() string {
	if q == nil {
		return ""
	}

	var parts []string

	if len(q.Filters) > 0 {
		names := make([]string, 0, len(q.Filters))
		for name := range q.Filters {
			names = append(names, name)
		}
		sort.Strings(names)

		pairs := make([]string, 0, len(names))
		for _, name := range names {
			pairs = append(pairs, url.QueryEscape(name)+"="+url.QueryEscape(q.Filters[name]))
		}
		parts = append(parts, strings.Join(pairs, ","))
	}

	if q.SortField != "" {
		dir := q.SortDir
		if dir != "desc" {
			dir = "asc"
		}
		parts = append(parts, "sort="+url.QueryEscape(q.SortField)+":"+dir)
	}
	if q.Page > 0 {
		parts = append(parts, fmt.Sprintf("page=%d", q.Page))
	}
	if q.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", q.Limit))
	}

	return strings.Join(parts, "|")
}

// Key identifies a cached response.
type Key struct {
	// Resource is the logical collection name, e.g. "users".
	Resource string

	// Op is the operation kind.
	Op Operation

	// Identifier is the resource identifier; set only for OpGet.
	Identifier string

	// Query describes filter/sort/pagination; set only for OpList and OpCount.
	Query *QueryDescriptor
}

// String generates the deterministic key string.
// Format: resource:operation:selector, where selector is the identifier
// for single-resource reads and the canonical (or hashed) query
// descriptor for collection reads. Collection reads without parameters
// use the literal selector "all" so that every key stays matchable by
// the resource:operation:* invalidation pattern.
//
// Example:
//
//	users:get:42
//	users:list:role=admin,team=core|sort=name:asc|page=2|limit=50
func (k Key) String() string {
	resource := strings.ToLower(strings.TrimSpace(k.Resource))

	selector := ""
	switch k.Op {
	case OpGet:
		selector = k.Identifier
	case OpList, OpCount:
		selector = k.Query.canonical()
		if len(selector) > descriptorHashThreshold {
			selector = fmt.Sprintf("%x", sha256.Sum256([]byte(selector)))
		}
	}
	if selector == "" {
		selector = "all"
	}

	return resource + ":" + string(k.Op) + ":" + selector
}

// Pattern returns the glob matching every key String can produce for
// the given resource and operation, and no key of any other resource.
// The pattern is anchored on the literal resource name plus delimiter.
func Pattern(resource string, op Operation) string {
	return strings.ToLower(strings.TrimSpace(resource)) + ":" + string(op) + ":*"
}
