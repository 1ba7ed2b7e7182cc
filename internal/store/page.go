// Package store provides the local RecordStore implementations and the
// factory that picks a store from configuration.
package store

import (
	"fmt"
	"io"
	"strconv"

	"babylog/internal/babylog"
)

// Store is a RecordStore that holds resources until closed.
type Store interface {
	babylog.RecordStore
	io.Closer
}

// Local stores use the decimal offset of the next record as the page token.

func parsePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	return offset, nil
}

func pageSize(query babylog.ListQuery) int {
	if query.PageSize <= 0 {
		return babylog.DefaultPageSize
	}
	return query.PageSize
}

func nextPageToken(offset, returned int, more bool) string {
	if !more {
		return ""
	}
	return strconv.Itoa(offset + returned)
}
