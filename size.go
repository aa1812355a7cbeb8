package bundlecache

import "encoding/json"

// SizeOf returns the byte size of the canonical serialized form of a bundle
// payload. The canonical form is JSON with lexically ordered keys, which is
// what the durable tier stores, so this is the number every size-budget
// decision works from.
func SizeOf(data map[string]string) int64 {
	// Marshaling a map[string]string cannot fail.
	b, _ := json.Marshal(data)
	return int64(len(b))
}
