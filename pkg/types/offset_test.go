package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOffset_Humanized_Units(t *testing.T) {
	cases := []struct {
		in   Offset
		want string
	}{
		{Offset(0), "0ns"},
		{Offset(500), "500ns"},
		{Offset(time.Microsecond), "1.00µs"},
		{Offset(1500), "1.50µs"},
		{Offset(time.Millisecond), "1.00ms"},
		{Offset(2500 * time.Microsecond), "2.50ms"},
		{Offset(time.Second), "1.00s"},
		{Offset(2500 * time.Millisecond), "2.50s"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.in.Humanized())
	}
}

func TestOffset_Humanized_Negative(t *testing.T) {
	assert.Equal(t, "-1.00ms", Offset(-time.Millisecond).Humanized())
}

func TestOffset_UnitAccessors(t *testing.T) {
	o := Offset(2500 * time.Microsecond)
	assert.InDelta(t, 2500.0, o.Micros(), 1e-9)
	assert.InDelta(t, 2.5, o.Millis(), 1e-9)
	assert.InDelta(t, 0.0025, o.Seconds(), 1e-9)
}

func TestOffset_Sleep(t *testing.T) {
	assert.Equal(t, time.Duration(0), Offset(-5).Sleep())
	assert.Equal(t, 10*time.Millisecond, Offset(10*time.Millisecond).Sleep())
}
