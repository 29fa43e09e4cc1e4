package ledger

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var idMu sync.Mutex
var idEntropy = func() *ulid.MonotonicEntropy {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}()

// newTradeID returns a ULID so trade records sort lexicographically by
// creation time.
func newTradeID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), idEntropy).String()
}
