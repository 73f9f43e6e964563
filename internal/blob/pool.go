package blob

import "sync"

// bPool is a sync.Pool that always returns byte slices of exactly size
// bytes, the same shape as the teacher's cipher/plaintext block pools in
// contentenc.ContentEnc -- one pool per fixed buffer size, Get/Put instead
// of Get/Discard.
type bPool struct {
	pool sync.Pool
	size int
}

func newBPool(size int) *bPool {
	return &bPool{
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
		size: size,
	}
}

// Get returns a size-length slice. Its contents are not zeroed.
func (p *bPool) Get() []byte {
	return p.pool.Get().([]byte)[:p.size]
}

// Put returns buf to the pool. buf must have been obtained from Get (or
// have a capacity of exactly size); anything else is silently dropped.
func (p *bPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	p.pool.Put(buf[:p.size])
}

// clusterBufferPools caches one bPool per distinct clusterSize Encrypt is
// asked to produce, the same way contentenc.ContentEnc keys its block
// pools by block size. A Store only ever passes common.ClusterSize, so in
// practice this settles to exactly one pool after the first blob is
// encrypted; the map exists so the package isn't hard-coded to one cluster
// size.
var (
	clusterPoolsMu sync.Mutex
	clusterPools   = map[int]*bPool{}
)

// clusterPool returns the shared bPool for size, creating it on first use.
func clusterPool(size int) *bPool {
	clusterPoolsMu.Lock()
	defer clusterPoolsMu.Unlock()
	p, ok := clusterPools[size]
	if !ok {
		p = newBPool(size)
		clusterPools[size] = p
	}
	return p
}
