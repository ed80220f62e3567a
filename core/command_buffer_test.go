// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"

	"github.com/devblok/vksafe/gfx"
)

func TestRecordTriangle(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	pipeline := f.pipeline(c, pass)
	view, fb := f.target(c, pass)
	pool, cbs := f.buffers(c, 1)
	cb := cbs[0]
	c.Assert(cb.State(), qt.Equals, Idle)

	err := cb.Record(func(rec *Recorder) error {
		c.Assert(cb.State(), qt.Equals, Recording)
		return rec.RenderPass(pass, fb, func(rp *RenderPassRecorder) error {
			c.Assert(cb.State(), qt.Equals, InRenderPass)
			bound, err := rp.BindGraphicsPipeline(pipeline)
			if err != nil {
				return err
			}
			c.Assert(cb.State(), qt.Equals, PipelineBound)
			if err := bound.SetViewport(gfx.FullViewport(rp.Extent())); err != nil {
				return err
			}
			if err := bound.SetScissor(gfx.FullRect(rp.Extent())); err != nil {
				return err
			}
			return bound.Draw(3, 1, 0, 0)
		})
	})
	c.Assert(err, qt.IsNil)
	c.Assert(cb.State(), qt.Equals, Executable)
	c.Assert(f.api.Ops(
		"BeginCommandBuffer", "CmdBeginRenderPass", "CmdBindGraphicsPipeline",
		"CmdSetViewport", "CmdSetScissor", "CmdDraw", "CmdEndRenderPass", "EndCommandBuffer",
	), qt.DeepEquals, []string{
		"BeginCommandBuffer", "CmdBeginRenderPass", "CmdBindGraphicsPipeline",
		"CmdSetViewport", "CmdSetScissor", "CmdDraw", "CmdEndRenderPass", "EndCommandBuffer",
	})
	draw := f.api.CallsOf("CmdDraw")[0]
	c.Assert(draw.Args, qt.DeepEquals, []interface{}{uint32(3), uint32(1), uint32(0), uint32(0)})

	// The buffer keeps what it recorded alive.
	destroyAll(pipeline, fb, pass, view)
	c.Assert(f.api.Alive(pipeline.Handle()), qt.IsTrue)
	c.Assert(f.api.Alive(fb.Handle()), qt.IsTrue)
	c.Assert(f.api.Alive(view.Handle()), qt.IsTrue)

	cb.Destroy()
	c.Assert(f.api.Alive(pipeline.Handle()), qt.IsFalse)
	c.Assert(f.api.Alive(pass.Handle()), qt.IsFalse)
	c.Assert(f.api.Alive(view.Handle()), qt.IsFalse)
	pool.Destroy()
}

func TestScopesEndOnce(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	view, fb := f.target(c, pass)
	pool, cbs := f.buffers(c, 3)
	defer destroyAll(pool, cbs[0], cbs[1], cbs[2], fb, view, pass)

	c.Run("error", func(c *qt.C) {
		boom := errors.New("boom")
		err := cbs[0].Record(func(rec *Recorder) error {
			return rec.RenderPass(pass, fb, func(*RenderPassRecorder) error {
				return boom
			})
		})
		c.Assert(err, qt.Equals, boom)
		c.Assert(cbs[0].State(), qt.Equals, Executable)
	})

	c.Run("panic", func(c *qt.C) {
		c.Assert(func() {
			cbs[1].Record(func(rec *Recorder) error {
				return rec.RenderPass(pass, fb, func(*RenderPassRecorder) error {
					panic("boom")
				})
			})
		}, qt.PanicMatches, "boom")
		c.Assert(cbs[1].State(), qt.Equals, Executable)
	})

	c.Run("explicit end is idempotent", func(c *qt.C) {
		rec, err := cbs[2].Begin()
		c.Assert(err, qt.IsNil)
		rp, err := rec.BeginRenderPass(pass, fb)
		c.Assert(err, qt.IsNil)
		c.Assert(rp.End(), qt.IsNil)
		c.Assert(rp.End(), qt.IsNil)
		c.Assert(rec.End(), qt.IsNil)
		c.Assert(rec.End(), qt.IsNil)
	})

	c.Assert(f.api.Count("CmdEndRenderPass"), qt.Equals, 3)
	c.Assert(f.api.Count("EndCommandBuffer"), qt.Equals, 3)
}

func TestEndClosesRenderPass(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	view, fb := f.target(c, pass)
	pool, cbs := f.buffers(c, 1)
	defer destroyAll(pool, cbs[0], fb, view, pass)

	err := cbs[0].Record(func(rec *Recorder) error {
		_, err := rec.BeginRenderPass(pass, fb)
		return err
	})
	c.Assert(err, qt.IsNil)
	c.Assert(f.api.Ops("CmdEndRenderPass", "EndCommandBuffer"), qt.DeepEquals, []string{"CmdEndRenderPass", "EndCommandBuffer"})
}

func TestRecordingViolations(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	other := f.renderPass(c)
	pipeline := f.pipeline(c, pass)
	foreign := f.pipeline(c, other)
	view, fb := f.target(c, pass)
	defer destroyAll(pipeline, foreign, fb, view, pass, other)

	tests := []struct {
		about  string
		record func(rec *Recorder) error
		reason string
	}{{
		about: "render pass twice",
		record: func(rec *Recorder) error {
			if _, err := rec.BeginRenderPass(pass, fb); err != nil {
				return err
			}
			_, err := rec.BeginRenderPass(pass, fb)
			return err
		},
		reason: "render pass already in progress",
	}, {
		about: "framebuffer of another render pass",
		record: func(rec *Recorder) error {
			_, err := rec.BeginRenderPass(other, fb)
			return err
		},
		reason: "framebuffer was created for another render pass",
	}, {
		about: "pipeline of another render pass",
		record: func(rec *Recorder) error {
			return rec.RenderPass(pass, fb, func(rp *RenderPassRecorder) error {
				_, err := rp.BindGraphicsPipeline(foreign)
				return err
			})
		},
		reason: "pipeline was created for another render pass",
	}, {
		about: "draw without dynamic viewport",
		record: func(rec *Recorder) error {
			return rec.RenderPass(pass, fb, func(rp *RenderPassRecorder) error {
				bound, err := rp.BindGraphicsPipeline(pipeline)
				if err != nil {
					return err
				}
				return bound.Draw(3, 1, 0, 0)
			})
		},
		reason: "pipeline has a dynamic viewport that was not set",
	}, {
		about: "stale render pass recorder",
		record: func(rec *Recorder) error {
			var stale *RenderPassRecorder
			if err := rec.RenderPass(pass, fb, func(rp *RenderPassRecorder) error {
				stale = rp
				return nil
			}); err != nil {
				return err
			}
			_, err := stale.BindGraphicsPipeline(pipeline)
			return err
		},
		reason: "render pass recorder used after End",
	}, {
		about: "stale pipeline recorder",
		record: func(rec *Recorder) error {
			return rec.RenderPass(pass, fb, func(rp *RenderPassRecorder) error {
				first, err := rp.BindGraphicsPipeline(pipeline)
				if err != nil {
					return err
				}
				if _, err := first.BindGraphicsPipeline(pipeline); err != nil {
					return err
				}
				return first.SetViewport(gfx.FullViewport(rp.Extent()))
			})
		},
		reason: "pipeline recorder used after its pipeline was unbound",
	}}

	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			pool, cbs := f.buffers(c, 1)
			defer destroyAll(pool, cbs[0])

			err := cbs[0].Record(test.record)
			var pv *ProtocolViolation
			c.Assert(err, qt.ErrorAs, &pv)
			c.Assert(pv.Reason, qt.Equals, test.reason)
			c.Assert(cbs[0].Err(), qt.Equals, err)
			c.Assert(cbs[0].State(), qt.Equals, Executable)
			c.Assert(f.api.Count("CmdDraw"), qt.Equals, 0)

			q := f.dev.GraphicsQueue()
			err = q.Submit(Submission{CommandBuffers: cbs})
			c.Assert(err, qt.ErrorAs, &pv)
			c.Assert(err, qt.ErrorIs, cbs[0].Err())
		})
	}
}

func TestBeginTwice(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pool, cbs := f.buffers(c, 1)
	defer destroyAll(pool, cbs[0])

	rec, err := cbs[0].Begin()
	c.Assert(err, qt.IsNil)
	_, err = cbs[0].Begin()
	c.Assert(err, qt.ErrorAs, new(*ProtocolViolation))
	c.Assert(rec.End(), qt.Equals, err)
	c.Assert(f.api.Count("BeginCommandBuffer"), qt.Equals, 1)

	// One recording cycle per pool reset.
	_, err = cbs[0].Begin()
	c.Assert(err, qt.ErrorAs, new(*ProtocolViolation))
	c.Assert(rec.End(), qt.Not(qt.IsNil))
}

func TestBeginAfterEnd(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pool, cbs := f.buffers(c, 1)
	defer destroyAll(pool, cbs[0])

	c.Assert(cbs[0].Record(func(*Recorder) error { return nil }), qt.IsNil)
	_, err := cbs[0].Begin()
	c.Assert(err, qt.ErrorAs, new(*ProtocolViolation))
	c.Assert(cbs[0].Err(), qt.IsNil)
	c.Assert(cbs[0].State(), qt.Equals, Executable)
	c.Assert(f.api.Count("BeginCommandBuffer"), qt.Equals, 1)
	c.Assert(f.dev.GraphicsQueue().Submit(Submission{CommandBuffers: cbs}), qt.IsNil)
}

func TestDestroyWhileRecording(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	view, fb := f.target(c, pass)
	pool, cbs := f.buffers(c, 2)
	defer destroyAll(pool, fb, view, pass)

	c.Run("scoped", func(c *qt.C) {
		cb := cbs[0]
		h := cb.Handle()
		err := cb.Record(func(rec *Recorder) error {
			return rec.RenderPass(pass, fb, func(*RenderPassRecorder) error {
				cb.Destroy()
				c.Assert(cb.Alive(), qt.IsFalse)
				c.Assert(f.api.Alive(h), qt.IsTrue)
				return nil
			})
		})
		c.Assert(err, qt.IsNil)
		c.Assert(f.api.Ops("CmdEndRenderPass", "EndCommandBuffer", "FreeCommandBuffers"), qt.DeepEquals, []string{
			"CmdEndRenderPass", "EndCommandBuffer", "FreeCommandBuffers",
		})
		c.Assert(f.api.Alive(h), qt.IsFalse)
		c.Assert(f.api.Violations(), qt.HasLen, 0)

		err = f.dev.GraphicsQueue().Submit(Submission{CommandBuffers: []*CommandBuffer{cb}})
		c.Assert(err, qt.ErrorAs, new(*ProtocolViolation))
	})

	c.Run("freed by pool reset", func(c *qt.C) {
		cb := cbs[1]
		h := cb.Handle()
		rec, err := cb.Begin()
		c.Assert(err, qt.IsNil)
		cb.Destroy()
		_, err = rec.BeginRenderPass(pass, fb)
		c.Assert(err, qt.ErrorAs, new(*ProtocolViolation))
		c.Assert(f.api.Alive(h), qt.IsTrue)

		c.Assert(pool.Reset(), qt.IsNil)
		c.Assert(f.api.Alive(h), qt.IsFalse)
		c.Assert(rec.End(), qt.IsNil)
		c.Assert(f.api.Count("EndCommandBuffer"), qt.Equals, 1)
		c.Assert(f.api.Violations(), qt.HasLen, 0)
	})
}

func TestPoolReset(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	view, fb := f.target(c, pass)
	pool, cbs := f.buffers(c, 2)
	defer destroyAll(pool, cbs[1])

	record := func(rec *Recorder) error {
		return rec.RenderPass(pass, fb, func(*RenderPassRecorder) error { return nil })
	}
	c.Assert(cbs[0].Record(record), qt.IsNil)
	cbs[1].Destroy()

	destroyAll(fb, view, pass)
	c.Assert(f.api.Alive(fb.Handle()), qt.IsTrue)

	stale := cbs[0]
	c.Assert(pool.Reset(), qt.IsNil)
	c.Assert(stale.State(), qt.Equals, Idle)
	c.Assert(stale.Err(), qt.IsNil)
	c.Assert(f.api.Alive(fb.Handle()), qt.IsFalse)
	c.Assert(f.api.Alive(pass.Handle()), qt.IsFalse)

	c.Assert(stale.Record(func(*Recorder) error { return nil }), qt.IsNil)
	stale.Destroy()
}
