//go:build linux

package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThirdLargest_S3(t *testing.T) {
	samples := make([]time.Duration, 0, 100)
	for v := 10; v <= 1000; v += 10 {
		samples = append(samples, time.Duration(v))
	}
	assert.Equal(t, int64(980), thirdLargest(samples))
}

func TestThirdLargest_FewerThanThreeSamples(t *testing.T) {
	assert.Equal(t, int64(5), thirdLargest([]time.Duration{5}))
	assert.Equal(t, int64(3), thirdLargest([]time.Duration{10, 3}))
}

func TestThirdLargest_Empty(t *testing.T) {
	assert.Equal(t, int64(0), thirdLargest(nil))
}
