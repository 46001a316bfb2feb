package camera

import (
	"sync"
	"time"
)

// Animate runs a standalone eased interpolation from one pose to another,
// calling onFrame for each tick and once more at progress 1. It is the
// disposer-style helper for callers that own their camera state; the
// Coordinator runs its own frame loop and does not use it. The returned
// func stops the animation. It is idempotent and safe to call after the
// animation finished. At most one frame already in flight may still be
// delivered after it returns.
func Animate(clock Clock, from, to Pose, duration, interval time.Duration, onFrame func(Pose, float64)) (stop func()) {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultConfig().FrameInterval
	}

	quit := make(chan struct{})
	var once sync.Once
	stop = func() { once.Do(func() { close(quit) }) }

	start := clock.Now()
	ticker := clock.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case now := <-ticker.C():
				progress := 1.0
				if duration > 0 {
					progress = float64(now.Sub(start)) / float64(duration)
				}
				if progress > 1 {
					progress = 1
				}
				select {
				case <-quit:
					return
				default:
				}
				onFrame(LerpPose(from, to, Ease(progress)), progress)
				if progress >= 1 {
					stop()
					return
				}
			}
		}
	}()

	return stop
}
