package store

import "strconv"

// encodeCount/decodeCount give MemoryStore the same "counter stored as a
// string" representation Redis uses for INCR, so tests against MemoryStore
// exercise the same wire format as production.
func encodeCount(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func decodeCount(raw []byte) int64 {
	if len(raw) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
