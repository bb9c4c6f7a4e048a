package aqua

import "sync"

var bodyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

func releaseBodyBytes(b []byte) {
	if cap(b) > 1<<20 {
		return
	}
	bodyBytesPool.Put(b[:0])
}
