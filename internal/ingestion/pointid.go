package ingestion

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// PointID derives the stable 64-bit point identifier for a manual page from
// its document ID and page number. The hash is masked to a positive int64
// range so the same key always maps to the same point and re-ingesting a
// page overwrites it in place.
func PointID(documentID string, page int) uint64 {
	key := fmt.Sprintf("%s_page_%d", documentID, page)
	return xxhash.Sum64String(key) & 0x7FFFFFFFFFFFFFFF
}
