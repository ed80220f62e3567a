// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/internal/ownership"
	"github.com/devblok/vksafe/native"
	"github.com/devblok/vksafe/native/nativetest"
)

func TestDeviceOutlivesDependents(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	sc, err := NewSwapchainBuilder(f.dev, f.surface).Build()
	c.Assert(err, qt.IsNil)

	f.dev.Destroy()
	c.Assert(f.api.Alive(f.dev.Handle()), qt.IsTrue)
	c.Assert(f.dev.Alive(), qt.IsFalse)

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["kind"] == "Device" {
			warned = true
		}
	}
	c.Assert(warned, qt.IsTrue)

	sc.Destroy()
	c.Assert(f.api.Alive(f.dev.Handle()), qt.IsFalse)
	c.Assert(f.api.Ops("DestroySwapchain", "DestroyDevice"), qt.DeepEquals, []string{"DestroySwapchain", "DestroyDevice"})
	f.teardown(c)
}

func TestDestroyedDependencyRejected(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	f.dev.Destroy()
	_, err := NewFenceBuilder(f.dev).Build()
	var pv *ProtocolViolation
	c.Assert(err, qt.ErrorAs, &pv)
	c.Assert(err, qt.ErrorIs, ownership.ErrReleased)
	c.Assert(f.api.Count("CreateFence"), qt.Equals, 0)
}

func TestSharedImageDestroyedOnce(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	img, err := NewImageBuilder(f.dev).WithExtent(16, 16).Build()
	c.Assert(err, qt.IsNil)
	clones := []*Image{img}
	for i := 0; i < 4; i++ {
		cl, err := img.Clone()
		c.Assert(err, qt.IsNil)
		clones = append(clones, cl)
	}
	for i, cl := range clones {
		c.Assert(f.api.Destroys(img.Handle()), qt.Equals, 0)
		cl.Destroy()
		cl.Destroy()
		if i < len(clones)-1 {
			c.Assert(f.api.Alive(img.Handle()), qt.IsTrue)
		}
	}
	c.Assert(f.api.Destroys(img.Handle()), qt.Equals, 1)

	_, err = img.Clone()
	c.Assert(err, qt.ErrorAs, new(*ProtocolViolation))
}

func TestViewKeepsImageAlive(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	img, err := NewImageBuilder(f.dev).WithExtent(16, 16).WithFormat(gfx.FormatD32Sfloat).
		WithUsage(gfx.UsageDepthStencilAttachment).Build()
	c.Assert(err, qt.IsNil)
	view, err := NewImageViewBuilder(f.dev, img).Build()
	c.Assert(err, qt.IsNil)
	c.Assert(view.Format(), qt.Equals, gfx.FormatD32Sfloat)

	img.Destroy()
	c.Assert(f.api.Alive(img.Handle()), qt.IsTrue)
	view.Destroy()
	c.Assert(f.api.Ops("DestroyImageView", "DestroyImage"), qt.DeepEquals, []string{"DestroyImageView", "DestroyImage"})
}

func TestBuildersAreSingleUse(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	builds := []struct {
		name  string
		build func() (gfx.Releasable, error)
	}{{
		name: "fence",
		build: func() func() (gfx.Releasable, error) {
			b := NewFenceBuilder(f.dev)
			return func() (gfx.Releasable, error) { return b.Build() }
		}(),
	}, {
		name: "semaphore",
		build: func() func() (gfx.Releasable, error) {
			b := NewSemaphoreBuilder(f.dev)
			return func() (gfx.Releasable, error) { return b.Build() }
		}(),
	}, {
		name: "layout",
		build: func() func() (gfx.Releasable, error) {
			b := NewPipelineLayoutBuilder(f.dev)
			return func() (gfx.Releasable, error) { return b.Build() }
		}(),
	}, {
		name: "pool",
		build: func() func() (gfx.Releasable, error) {
			b := NewCommandPoolBuilder(f.dev)
			return func() (gfx.Releasable, error) { return b.Build() }
		}(),
	}}
	for _, test := range builds {
		c.Run(test.name, func(c *qt.C) {
			r, err := test.build()
			c.Assert(err, qt.IsNil)
			defer r.Destroy()
			_, err = test.build()
			var pv *ProtocolViolation
			c.Assert(err, qt.ErrorAs, &pv)
			c.Assert(pv.Reason, qt.Equals, "builder already used")
		})
	}
}

func TestCreationFailureLeaksNothing(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	defer pass.Destroy()

	vert, frag := f.shader(c), f.shader(c)
	f.api.Fail("CreateGraphicsPipeline", native.ErrOutOfDeviceMemory)
	_, err := NewGraphicsPipelineBuilder(f.dev, pass).
		AddShader(gfx.ShaderStageVertex, vert).
		AddShader(gfx.ShaderStageFragment, frag).
		Build()
	var rce *ResourceCreationError
	c.Assert(err, qt.ErrorAs, &rce)
	c.Assert(rce.Kind, qt.Equals, "GraphicsPipeline")
	c.Assert(err, qt.ErrorIs, native.ErrOutOfDeviceMemory)
	c.Assert(f.api.Live(nativetest.KindShaderModule), qt.HasLen, 0)
	c.Assert(vert.Alive(), qt.IsFalse)
}

func TestPipelineConsumesShaders(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	p := f.pipeline(c, pass)
	c.Assert(f.api.Live(nativetest.KindShaderModule), qt.HasLen, 0)
	c.Assert(p.DynamicViewport(), qt.IsTrue)
	c.Assert(p.DynamicScissor(), qt.IsTrue)

	pass.Destroy()
	c.Assert(f.api.Alive(pass.Handle()), qt.IsTrue)
	p.Destroy()
	c.Assert(f.api.Ops("DestroyPipeline", "DestroyRenderPass"), qt.DeepEquals, []string{"DestroyPipeline", "DestroyRenderPass"})
}

func TestPipelineConfiguration(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	defer pass.Destroy()

	c.Run("no vertex shader", func(c *qt.C) {
		_, err := NewGraphicsPipelineBuilder(f.dev, pass).AddShader(gfx.ShaderStageFragment, f.shader(c)).Build()
		c.Assert(err, qt.ErrorIs, ErrInvalidConfiguration)
	})
	c.Run("duplicate stage", func(c *qt.C) {
		_, err := NewGraphicsPipelineBuilder(f.dev, pass).
			AddShader(gfx.ShaderStageVertex, f.shader(c)).
			AddShader(gfx.ShaderStageVertex, f.shader(c)).
			Build()
		c.Assert(err, qt.ErrorIs, ErrInvalidConfiguration)
	})
	c.Run("fixed state", func(c *qt.C) {
		layout, err := NewPipelineLayoutBuilder(f.dev).Build()
		c.Assert(err, qt.IsNil)
		p, err := NewGraphicsPipelineBuilder(f.dev, pass).
			AddShader(gfx.ShaderStageVertex, f.shader(c)).
			WithFixedViewport(64, 32).
			WithFixedScissor(64, 32).
			WithPipelineLayout(layout).
			AddColorAttachment().
			Build()
		c.Assert(err, qt.IsNil)
		layout.Destroy()
		c.Assert(f.api.Alive(layout.Handle()), qt.IsTrue)
		c.Assert(p.DynamicViewport(), qt.IsFalse)
		p.Destroy()
		c.Assert(f.api.Alive(layout.Handle()), qt.IsFalse)
	})
	c.Assert(f.api.Live(nativetest.KindShaderModule), qt.HasLen, 0)
}

func TestShaderModuleRejectsBadCode(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	_, err := NewShaderModule(f.dev, []byte{1, 2, 3})
	c.Assert(err, qt.ErrorIs, ErrInvalidConfiguration)
	_, err = NewShaderModule(f.dev, []byte{1, 2, 3, 4})
	c.Assert(err, qt.ErrorIs, native.ErrInitializationFailed)
}

func TestNilWrappersRejected(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	pipeline := f.pipeline(c, pass)
	view, fb := f.target(c, pass)
	pool, cbs := f.buffers(c, 2)
	sc, err := NewSwapchainBuilder(f.dev, f.surface).Build()
	c.Assert(err, qt.IsNil)
	defer destroyAll(sc, pool, cbs[0], cbs[1], pipeline, fb, view, pass)

	violates := func(c *qt.C, err error) {
		var pv *ProtocolViolation
		c.Assert(err, qt.ErrorAs, &pv)
		c.Assert(pv.Reason, qt.Matches, "missing .*")
	}

	c.Run("recording", func(c *qt.C) {
		err := cbs[0].Record(func(rec *Recorder) error {
			_, err := rec.BeginRenderPass(pass, nil)
			return err
		})
		violates(c, err)
		err = cbs[1].Record(func(rec *Recorder) error {
			return rec.RenderPass(pass, fb, func(rp *RenderPassRecorder) error {
				_, err := rp.BindGraphicsPipeline(nil)
				return err
			})
		})
		violates(c, err)
		c.Assert(f.api.Count("CmdBindGraphicsPipeline"), qt.Equals, 0)
	})

	c.Run("presentation", func(c *qt.C) {
		violates(c, f.dev.PresentQueue().Present(nil, 0, nil))
		_, err := sc.AcquireNextImage(nil)
		violates(c, err)
		violates(c, f.dev.GraphicsQueue().Submit(Submission{CommandBuffers: []*CommandBuffer{nil}}))
	})

	c.Run("builders", func(c *qt.C) {
		_, err := NewFramebufferBuilder(f.dev, nil, 64, 32).Build()
		violates(c, err)
		_, err = NewFramebufferBuilder(f.dev, pass, 64, 32).WithAttachment(nil).Build()
		violates(c, err)
		_, err = NewImageViewBuilder(f.dev, nil).Build()
		violates(c, err)
		_, err = NewGraphicsPipelineBuilder(f.dev, pass).AddShader(gfx.ShaderStageVertex, nil).Build()
		violates(c, err)
		_, err = NewSwapchainBuilder(f.dev, nil).Build()
		violates(c, err)
		_, err = NewFenceBuilder(nil).Build()
		violates(c, err)
		_, err = NewShaderModule(nil, nativetest.SPIRV(1))
		violates(c, err)
	})
}
