// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package triangle

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packd"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/vksafe/config"
	"github.com/devblok/vksafe/core"
	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
	"github.com/devblok/vksafe/native/nativetest"
)

type fakeWindow struct {
	width, height uint32
}

func (w *fakeWindow) Size() (uint32, uint32) {
	return w.width, w.height
}

func (w *fakeWindow) NewSurface(interface{}) (uintptr, error) {
	return 0xbeef, nil
}

type env struct {
	api     *nativetest.API
	hook    *test.Hook
	log     *logrus.Logger
	inst    *core.Instance
	surface *core.Surface
	dev     *core.Device
	window  *fakeWindow
	shaders core.ShaderSource
}

func newEnv(c *qt.C) *env {
	e := &env{
		api:    nativetest.New(),
		window: &fakeWindow{width: nativetest.DefaultExtent.Width, height: nativetest.DefaultExtent.Height},
	}
	e.log, e.hook = test.NewNullLogger()

	var err error
	e.inst, err = core.NewInstanceBuilder(e.api).WithLogger(e.log).Build()
	c.Assert(err, qt.IsNil)
	e.surface, err = core.NewSurface(e.inst, e.window)
	c.Assert(err, qt.IsNil)
	e.dev, err = e.inst.FindGPU().WithPresentation(e.surface).Build()
	c.Assert(err, qt.IsNil)

	box := packd.NewMemoryBox()
	c.Assert(box.AddBytes(VertexShader, nativetest.SPIRV(1)), qt.IsNil)
	c.Assert(box.AddBytes(FragmentShader, nativetest.SPIRV(2)), qt.IsNil)
	e.shaders = core.FinderSource(box)
	return e
}

func (e *env) teardown(c *qt.C) {
	e.dev.Destroy()
	e.surface.Destroy()
	e.inst.Destroy()
	c.Check(e.api.Violations(), qt.HasLen, 0)
	c.Check(e.api.Live(""), qt.HasLen, 0)
}

func (e *env) renderer(c *qt.C) *Renderer {
	r, err := New(e.dev, e.surface, e.shaders, e.window, config.Default().Renderer, e.log)
	c.Assert(err, qt.IsNil)
	return r
}

func TestFrames(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	defer e.teardown(c)

	r := e.renderer(c)
	for i := 0; i < 6; i++ {
		c.Assert(r.Frame(), qt.IsNil)
	}
	r.Destroy()

	c.Assert(e.api.Count("QueueSubmit"), qt.Equals, 6)
	c.Assert(e.api.Count("QueuePresent"), qt.Equals, 6)
	c.Assert(e.api.Count("CreateSwapchain"), qt.Equals, 1)
	draws := e.api.CallsOf("CmdDraw")
	c.Assert(draws, qt.HasLen, config.Default().Renderer.SwapchainSize)
	c.Assert(draws[0].Args, qt.DeepEquals, []interface{}{uint32(3), uint32(1), uint32(0), uint32(0)})
}

func TestResize(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	defer e.teardown(c)

	r := e.renderer(c)
	defer r.Destroy()
	c.Assert(r.Frame(), qt.IsNil)

	e.window.width, e.window.height = 1024, 768
	e.api.Resize(e.surface.Handle(), gfx.Extent2D{Width: 1024, Height: 768})

	// The resized frame is dropped and the swapchain rebuilt.
	c.Assert(r.Frame(), qt.IsNil)
	c.Assert(e.api.Count("CreateSwapchain"), qt.Equals, 2)
	c.Assert(r.Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})

	presents := e.api.Count("QueuePresent")
	c.Assert(r.Frame(), qt.IsNil)
	c.Assert(e.api.Count("QueuePresent"), qt.Equals, presents+1)
}

func TestMinimized(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	defer e.teardown(c)

	r := e.renderer(c)
	defer r.Destroy()

	e.window.width, e.window.height = 0, 0
	e.api.Invalidate(r.chain.sc.Handle())
	c.Assert(r.Frame(), qt.IsNil)
	c.Assert(e.api.Count("CreateSwapchain"), qt.Equals, 1)

	e.window.width, e.window.height = 640, 480
	c.Assert(r.Frame(), qt.IsNil)
	c.Assert(e.api.Count("CreateSwapchain"), qt.Equals, 2)
}

func TestMissingShader(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	defer e.teardown(c)

	box := packd.NewMemoryBox()
	c.Assert(box.AddBytes(VertexShader, nativetest.SPIRV(1)), qt.IsNil)
	_, err := New(e.dev, e.surface, core.FinderSource(box), e.window, config.Default().Renderer, e.log)
	c.Assert(err, qt.ErrorMatches, ".*"+FragmentShader+".*")
}

func TestSubmitFailure(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	defer e.teardown(c)

	r := e.renderer(c)
	defer r.Destroy()

	e.api.Fail("QueueSubmit", native.ErrDeviceLost)
	err := r.Frame()
	var exec *core.ExecutionError
	c.Assert(err, qt.ErrorAs, &exec)
	c.Assert(err, qt.ErrorIs, native.ErrDeviceLost)
}
