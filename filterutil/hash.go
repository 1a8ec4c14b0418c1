// Package filterutil contains small helpers shared by the rule model, the
// lookup tables and the engines: the djb2 hash used as the key of every index
// and best-effort hostname utilities.
package filterutil

// FastHashBetween implements the djb2 hash algorithm for str[begin:end].  It
// doesn't allocate, so it is used to hash sliding windows over request URLs.
func FastHashBetween(str string, begin, end int) (hash uint32) {
	hash = uint32(5381)
	for i := begin; i < end; i++ {
		hash = (hash * 33) ^ uint32(str[i])
	}

	return hash
}

// FastHash implements the djb2 hash algorithm.  The hash of an empty string is
// zero.
func FastHash(str string) (hash uint32) {
	if str == "" {
		return 0
	}

	return FastHashBetween(str, 0, len(str))
}
