package rand

// https://www.calhoun.io/creating-random-strings-in-go/

import (
	"math/rand"
	"sync"
	"time"
)

const (
	CharsetLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetNumbers = "1234567890"
)

var (
	seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	seededLock sync.Mutex
)

// Read fills p with pseudo random bytes. It never fails. The bytes are not
// suitable for anything security related.
func Read(p []byte) (int, error) {
	seededLock.Lock()
	defer seededLock.Unlock()

	return seededRand.Read(p)
}

// Reader is an io.Reader based on Read.
var Reader = reader{}

type reader struct{}

func (reader) Read(p []byte) (int, error) {
	return Read(p)
}

func StringWithCharset(length int, charset string) string {
	seededLock.Lock()
	defer seededLock.Unlock()

	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}

	return string(b)
}

func StringAlphanumeric(length int) string {
	return StringWithCharset(length, CharsetLetters+CharsetNumbers)
}
