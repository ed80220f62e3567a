// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package clock

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vksafe/config"
)

func TestInterval(t *testing.T) {
	c := qt.New(t)
	c.Assert(Interval(60), qt.Equals, time.Second/60)
	c.Assert(Interval(1), qt.Equals, time.Second)
	c.Assert(Interval(0), qt.Equals, time.Nanosecond)
	c.Assert(Interval(-5), qt.Equals, time.Nanosecond)
}

func TestTicks(t *testing.T) {
	c := qt.New(t)
	tm := New(config.TimeConfiguration{FramesPerSecond: 1000})
	defer tm.Stop()
	c.Assert(tm.Fps(), qt.Equals, 1000)

	for i := 0; i < 3; i++ {
		<-tm.FpsTicker().C
		tm.Frame()
	}
	c.Assert(tm.Frames(), qt.Equals, uint64(3))
	c.Assert(tm.Average() > 0, qt.IsTrue)
}
