// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package clock paces the frame loop.
package clock

import (
	"time"

	"github.com/devblok/vksafe/config"
)

// New creates a new time service. Zero frames per second leaves the loop
// unthrottled.
func New(cfg config.TimeConfiguration) *Time {
	return &Time{
		fps:       cfg.FramesPerSecond,
		fpsTicker: time.NewTicker(Interval(cfg.FramesPerSecond)),
		started:   time.Now(),
	}
}

// Interval is the time between frames at fps frames per second.
func Interval(fps int) time.Duration {
	if fps <= 0 {
		return time.Nanosecond
	}
	return time.Second / time.Duration(fps)
}

// Time contains the frame ticker and counts frames.
type Time struct {
	fps       int
	fpsTicker *time.Ticker
	started   time.Time
	frames    uint64
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// Frame counts a drawn frame.
func (t *Time) Frame() {
	t.frames++
}

// Frames returns the number of frames counted.
func (t *Time) Frames() uint64 {
	return t.frames
}

// Average returns the achieved frame rate since the time service started.
func (t *Time) Average() float64 {
	elapsed := time.Since(t.started).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(t.frames) / elapsed
}

// Stop stops the ticker.
func (t *Time) Stop() {
	t.fpsTicker.Stop()
}
