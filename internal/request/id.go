package request

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// IDPattern matches request IDs.
var IDPattern = regexp.MustCompile(`^SR-\d+-[a-z0-9]{9}$`)

// NewRequestID returns SR-<unix millis>-<9 random [a-z0-9]>.
func NewRequestID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return "SR-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(suffix)
}
