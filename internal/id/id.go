package id

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator produces identity values.
type Generator interface {
	Next() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() string

// Next calls f.
func (f GeneratorFunc) Next() string { return f() }

// Counter is a monotonic generator producing Prefix followed by 1, 2, 3...
type Counter struct {
	prefix string
	n      atomic.Uint64
}

// NewCounter creates a Counter with the given prefix.
func NewCounter(prefix string) *Counter {
	return &Counter{prefix: prefix}
}

// Next returns the next identity in the sequence.
func (c *Counter) Next() string {
	return c.prefix + strconv.FormatUint(c.n.Add(1), 10)
}

// UUID generates a random UUID v4 string.
func UUID() string {
	return uuid.NewString()
}

// UUIDs is a Generator producing UUID v4 strings.
var UUIDs Generator = GeneratorFunc(UUID)

// ULIDs is a Generator producing ULIDs.
var ULIDs Generator = GeneratorFunc(ULID)

// ByName returns the generator registered under name: "counter" (default,
// prefix "g"), "uuid" or "ulid".
func ByName(name string) (Generator, error) {
	switch strings.ToLower(name) {
	case "", "counter":
		return NewCounter("g"), nil
	case "uuid":
		return UUIDs, nil
	case "ulid":
		return ULIDs, nil
	default:
		return nil, fmt.Errorf("unknown id generator %q (want counter, uuid or ulid)", name)
	}
}

// Crockford base32, without I, L, O and U.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var ulidState struct {
	sync.Mutex
	lastMs int64
	last   [10]byte
}

// ULID generates a 26-character identifier whose first 10 characters encode
// the millisecond timestamp. ULIDs generated within one millisecond increase
// monotonically.
func ULID() string {
	ulidState.Lock()
	defer ulidState.Unlock()

	now := time.Now().UnixMilli()
	if now <= ulidState.lastMs {
		now = ulidState.lastMs
		if !increment(ulidState.last[:]) {
			// randomness exhausted for this millisecond
			now++
			_, _ = rand.Read(ulidState.last[:])
		}
	} else {
		_, _ = rand.Read(ulidState.last[:])
	}
	ulidState.lastMs = now

	return encodeULID(now, ulidState.last)
}

func increment(b []byte) bool {
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			return true
		}
	}
	return false
}

func encodeULID(ms int64, entropy [10]byte) string {
	var out [26]byte
	for i := 9; i >= 0; i-- {
		out[i] = crockford[ms&0x1F]
		ms >>= 5
	}
	// 80 bits of entropy as 16 five-bit groups
	var acc uint64
	bits := 0
	pos := 10
	for _, b := range entropy {
		acc = acc<<8 | uint64(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = crockford[(acc>>uint(bits))&0x1F]
			pos++
		}
	}
	return string(out[:])
}

// ULIDTime extracts the timestamp encoded in a ULID.
func ULIDTime(s string) (time.Time, error) {
	if len(s) != 26 {
		return time.Time{}, fmt.Errorf("invalid ULID length %d", len(s))
	}
	var ms int64
	for i := 0; i < 10; i++ {
		v := strings.IndexByte(crockford, s[i])
		if v < 0 {
			return time.Time{}, fmt.Errorf("invalid ULID character at position %d", i)
		}
		ms = ms<<5 | int64(v)
	}
	return time.UnixMilli(ms), nil
}
