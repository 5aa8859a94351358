package util

import "sync"

// DefaultBufSize is the buffer size handed to engines for a single
// read (the default 9P msize).
const DefaultBufSize = 8192

// BufPool provides reusable byte buffers for connection I/O, reducing
// GC pressure when many short-lived connections each need one.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.  Buffers that were
// resliced below DefaultBufSize are dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) < DefaultBufSize {
		return
	}
	*buf = (*buf)[:DefaultBufSize]
	BufPool.Put(buf)
}
