package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/clock"
)

func TestFakeStartsAtZeroElapsed(t *testing.T) {
	f := clock.NewFake(1_700_000_000_000_000)
	assert.Equal(t, int64(0), f.ElapsedMicroseconds())
	assert.Equal(t, int64(1_700_000_000_000_000), f.UTCMicroseconds())
}

func TestFakeAdvanceMovesBothClocks(t *testing.T) {
	f := clock.NewFake(0)
	f.Advance(250 * time.Millisecond)
	assert.Equal(t, int64(250_000), f.ElapsedMicroseconds())
	assert.Equal(t, int64(250_000), f.UTCMicroseconds())
}

func TestFakeSleepDoesNotBlockButAdvances(t *testing.T) {
	f := clock.NewFake(0)
	start := time.Now()
	f.Sleep(time.Hour)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(time.Hour.Microseconds()), f.ElapsedMicroseconds())
}

func TestFakeNowReflectsWallClock(t *testing.T) {
	f := clock.NewFake(0)
	f.Advance(time.Second)
	assert.Equal(t, int64(1_000_000), f.Now().UnixMicro())
}

func TestRealClockIsMonotonicNonNegative(t *testing.T) {
	c := clock.New()
	first := c.ElapsedMicroseconds()
	time.Sleep(time.Millisecond)
	second := c.ElapsedMicroseconds()
	assert.GreaterOrEqual(t, second, first)
}
