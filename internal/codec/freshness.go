package codec

import (
	"strconv"
	"strings"
	"time"
)

// FreshnessSkew is added to the current time before encoding.
const FreshnessSkew = 60

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Freshness derives freshness tokens from a clock. The zero value uses the
// system clock.
type Freshness struct {
	Clock Clock
}

// NewFreshness returns a generator reading from clock.
func NewFreshness(clock Clock) *Freshness {
	return &Freshness{Clock: clock}
}

// Generate encodes now+60s. Calls within the same second return the same token.
func (f *Freshness) Generate() string {
	clock := f.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return EncodeFreshness(clock.Now().Unix() + FreshnessSkew)
}

// EncodeFreshness runs the token pipeline over an already skewed unix time.
func EncodeFreshness(t int64) string {
	step := reverse(hexEncode(strconv.FormatInt(t, 10)))
	step = strings.ReplaceAll(reverse(base64Encode(step)), "=", "")
	return Rotate13(step)
}

// GenerateFreshness returns a token for the current wall-clock second.
func GenerateFreshness() string {
	return (&Freshness{}).Generate()
}
