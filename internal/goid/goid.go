// Package goid extracts the current goroutine's id.
//
// The id is parsed from runtime.Stack output, which costs on the order of a
// microsecond. Callers keep it off hot paths: the gate consults it only while
// initialization is still in flight, never on the Ready fast path.
package goid

import "runtime"

// Current returns the id of the calling goroutine.
// Ids are positive and unique for the goroutine's lifetime; 0 means the
// stack header could not be parsed.
func Current() int64 {
	// First line is "goroutine 123 [running]:", 64 bytes is plenty.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
