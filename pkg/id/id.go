package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	// Seed a PRNG from crypto/rand so ULID entropy is unpredictable.
	// ulid.Monotonic keeps IDs generated within the same millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// At returns a ULID whose timestamp component is t.
//
// Trade records are stamped with their trading day, so journal rows sort by
// simulated time rather than by the moment the simulator happened to run.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// Monotonic entropy overflows only after 2^80 ids in one millisecond.
		panic(err)
	}
	return id.String()
}

// Run returns a random identifier for one simulator invocation.
func Run() string {
	return uuid.NewString()
}
