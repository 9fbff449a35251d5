package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPTracker_Escalation(t *testing.T) {
	clock := newFakeClock()
	tr := NewIPTracker(10*time.Minute, 10)
	tr.now = clock.Now

	for i := 1; i <= 9; i++ {
		assert.False(t, tr.TrackAndShouldBlock("203.0.113.9"), "hit %d should be soft", i)
		clock.Advance(time.Second)
	}
	assert.True(t, tr.TrackAndShouldBlock("203.0.113.9"), "10th hit blocks")
	assert.True(t, tr.TrackAndShouldBlock("203.0.113.9"), "stays blocked inside the window")

	clock.Advance(11 * time.Minute)
	assert.False(t, tr.TrackAndShouldBlock("203.0.113.9"), "counter restarts after the window")
}

func TestIPTracker_AddressesAreIndependent(t *testing.T) {
	tr := NewIPTracker(time.Minute, 2)

	assert.False(t, tr.TrackAndShouldBlock("a"))
	assert.False(t, tr.TrackAndShouldBlock("b"))
	assert.True(t, tr.TrackAndShouldBlock("a"))
	assert.True(t, tr.TrackAndShouldBlock("b"))
}

func TestIPTracker_Defaults(t *testing.T) {
	tr := NewIPTracker(0, 0)
	assert.Equal(t, DefaultSuspiciousWindow, tr.window)
	assert.Equal(t, DefaultSuspiciousThreshold, tr.threshold)
}

func TestIPTracker_Sweep(t *testing.T) {
	clock := newFakeClock()
	tr := NewIPTracker(time.Minute, 10)
	tr.now = clock.Now

	tr.TrackAndShouldBlock("old")
	clock.Advance(50 * time.Second)
	tr.TrackAndShouldBlock("fresh")
	clock.Advance(20 * time.Second)

	assert.Equal(t, 1, tr.Sweep())
	assert.Equal(t, 1, tr.Len())
}
