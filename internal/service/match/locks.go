package match

import (
	"hash/maphash"
	"sync"

	"github.com/oggyb/pupmatch/internal/db"
)

const lockStripes = 256

// pairLocks serialises mutations of the same unordered pair inside this
// process. Cross-process ordering comes from the row locks taken in the
// transaction; this only keeps local callers from queueing on the database.
type pairLocks struct {
	seed    maphash.Seed
	stripes [lockStripes]sync.Mutex
}

func newPairLocks() *pairLocks {
	return &pairLocks{seed: maphash.MakeSeed()}
}

func (l *pairLocks) lock(a, b uint64) func() {
	lo, hi := db.OrderedPair(a, b)
	var h maphash.Hash
	h.SetSeed(l.seed)
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(lo >> (8 * i))
		buf[8+i] = byte(hi >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	m := &l.stripes[h.Sum64()%lockStripes]
	m.Lock()
	return m.Unlock
}
