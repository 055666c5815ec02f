package record

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DefaultIDWidth is the zero-padding width shared by every resource prefix.
// Allocation trusts the collection's lexicographic id ordering as a proxy for
// numeric ordering, which only holds while all ids under a prefix share one
// width, so callers must not mix widths within a prefix.
const DefaultIDWidth = 3

// IDScanner is the collection view the allocator reads. PrefixedIDs reports
// the ids starting with prefix in descending lexicographic order.
type IDScanner interface {
	PrefixedIDs(ctx context.Context, prefix string) ([]string, error)
}

// NextID computes the next prefixed, zero-padded sequential identifier for a
// collection, e.g. "A007". Allocation proceeds from the greatest parseable
// numeric suffix; ids with a malformed suffix count as 0 so one corrupt
// record cannot halt allocation. NextID only reads; the id is not reserved,
// so two concurrent allocations for the same prefix can hand out the same
// value.
func NextID(ctx context.Context, scanner IDScanner, prefix string, width int) (string, error) {
	if width <= 0 {
		width = DefaultIDWidth
	}
	ids, err := scanner.PrefixedIDs(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("scan %q ids: %w", prefix, err)
	}
	last := 0
	for _, id := range ids {
		if n := parseSequence(id, prefix); n > 0 {
			last = n
			break
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, width, last+1), nil
}

// parseSequence extracts the numeric suffix of an identifier like "A001",
// returning 0 when the suffix is not a number.
func parseSequence(id, prefix string) int {
	if !strings.HasPrefix(id, prefix) {
		return 0
	}
	n, err := strconv.Atoi(id[len(prefix):])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
