// Package record implements the access layer shared by every resource type:
// identifier allocation, collection-name resolution, document normalization,
// timestamp bookkeeping, and the derived-state rules applied on write.
package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Storage bookkeeping fields stripped from client-facing records.
const (
	// NativeIDField is the store-assigned document identifier. It is never
	// exposed to clients; Normalize promotes it to "id" only when the record
	// carries no application-level identifier of its own.
	NativeIDField = "_docid"
	// RevisionField is an internal revision counter some drivers maintain.
	RevisionField = "_rev"
)

// Record is one stored entity as an open field mapping. The core treats
// resource-specific fields as opaque; only "id", "createdAt" and "updatedAt"
// carry shared meaning.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge overlays fields onto a copy of the record, field by field. The
// receiver is not modified.
func (r Record) Merge(fields Record) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(fields))
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Normalize converts a stored document into its client-facing form. A nil
// input normalizes to an empty Record. The store's native identifier is
// removed after serving as a fallback "id" when the document has none of its
// own, a non-string "id" is coerced to its string form, and internal
// revision metadata is stripped. The result contains only portable JSON
// values.
func Normalize(raw Record) Record {
	out := make(Record, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	native, hasNative := out[NativeIDField]
	delete(out, NativeIDField)
	if hasNative {
		if _, ok := out["id"]; !ok {
			out["id"] = stringify(native)
		}
	}
	if id, ok := out["id"]; ok {
		if _, isString := id.(string); !isString {
			out["id"] = stringify(id)
		}
	}
	delete(out, RevisionField)
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// NowISO returns the current instant as an RFC 3339 UTC timestamp, the wire
// format used for createdAt and updatedAt.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// TimestampPair captures a single instant as (createdAt, updatedAt) so a
// freshly created record reports identical timestamps.
func TimestampPair() (created, updated string) {
	now := NowISO()
	return now, now
}
