package threadguard

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID parses the numeric goroutine id out of runtime.Stack, the
// same trick debuggers and tools like sasha-s/go-deadlock use since Go
// does not expose one directly. Only called when debugEnabled, so the
// allocation cost never reaches production builds.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}
