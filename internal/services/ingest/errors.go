package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDeviceNotFound rejects ingestion before any write when the target
// device does not exist.
var ErrDeviceNotFound = errors.New("device not found")

// ValidationError carries field-scoped messages for a rejected sample.
// Nothing is persisted when it is returned; the caller can fix the payload
// and resubmit.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "invalid measurement: " + strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}
