package camera

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestAnimate_RunsToCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)
	clk := NewManualClock(t0)

	var mu sync.Mutex
	var got []float64
	finished := make(chan Pose, 1)

	stop := Animate(clk, homePose, dockPose, time.Second, 0, func(p Pose, progress float64) {
		mu.Lock()
		got = append(got, progress)
		mu.Unlock()
		if progress >= 1 {
			finished <- p
		}
	})
	defer stop()

	clk.Advance(1500 * time.Millisecond)

	select {
	case p := <-finished:
		assert.Equal(t, dockPose, p)
	case <-time.After(5 * time.Second):
		t.Fatal("animation did not finish")
	}

	mu.Lock()
	assert.Equal(t, []float64{1}, got)
	mu.Unlock()
}

func TestAnimate_StopPreventsCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)
	clk := NewManualClock(t0)

	called := make(chan struct{}, 4)
	stop := Animate(clk, homePose, dockPose, time.Second, 0, func(Pose, float64) {
		called <- struct{}{}
	})
	stop()
	stop()

	clk.Advance(2 * time.Second)

	// Give the goroutine a chance to misbehave.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, called, 0)
}
