package services

import (
	"strconv"
	"time"
)

// HashGUID derives a stable identifier for a feed item that has no usable id.
//
// It is a 32-bit rolling hash (h = h*31 + rune) over the title and the
// published instant, rendered in base 36. The output is opaque and may
// collide; callers pair it with the subscription id for uniqueness.
func HashGUID(title string, publishedAt time.Time) string {
	key := title + "|" + publishedAt.UTC().Format(time.RFC3339Nano)

	var h int32
	for _, r := range key {
		h = h*31 + int32(r)
	}

	n := int64(h)
	if n < 0 {
		n = -n
	}
	return "h_" + strconv.FormatInt(n, 36)
}
