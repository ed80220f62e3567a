// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
	"github.com/devblok/vksafe/native/nativetest"
)

var testWindow = native.SurfaceSourceFunc(func(interface{}) (uintptr, error) {
	return 0xdead, nil
})

// fixture is a device with a presentation surface on the fake API.
type fixture struct {
	api     *nativetest.API
	hook    *test.Hook
	inst    *Instance
	surface *Surface
	dev     *Device
}

func newFixture(c *qt.C) *fixture {
	f := &fixture{api: nativetest.New()}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	f.hook = hook

	var err error
	f.inst, err = NewInstanceBuilder(f.api).WithDebug(true).WithLogger(log).Build()
	c.Assert(err, qt.IsNil)
	f.surface, err = NewSurface(f.inst, testWindow)
	c.Assert(err, qt.IsNil)
	f.dev, err = f.inst.FindGPU().
		WithQueue(gfx.QueueGraphics | gfx.QueueTransfer).
		WithPresentation(f.surface).
		Build()
	c.Assert(err, qt.IsNil)
	return f
}

// teardown destroys the fixture roots and checks the fake saw no misuse
// and nothing leaked.
func (f *fixture) teardown(c *qt.C) {
	f.dev.Destroy()
	f.surface.Destroy()
	f.inst.Destroy()
	c.Check(f.api.Violations(), qt.HasLen, 0)
	c.Check(f.api.Live(""), qt.HasLen, 0)
}

func (f *fixture) renderPass(c *qt.C) *RenderPass {
	color := NewAttachmentBuilder("color").WithFinalLayout(gfx.LayoutPresentSrc).Build()
	pass, err := NewRenderPassBuilder(f.dev).
		AddSubpass(NewSubpassBuilder().AddColorAttachment(color, gfx.LayoutColorAttachmentOptimal).Build()).
		Build()
	c.Assert(err, qt.IsNil)
	return pass
}

func (f *fixture) shader(c *qt.C) *ShaderModule {
	m, err := NewShaderModule(f.dev, nativetest.SPIRV(1, 2, 3))
	c.Assert(err, qt.IsNil)
	return m
}

func (f *fixture) pipeline(c *qt.C, pass *RenderPass) *Pipeline {
	p, err := NewGraphicsPipelineBuilder(f.dev, pass).
		AddShader(gfx.ShaderStageVertex, f.shader(c)).
		AddShader(gfx.ShaderStageFragment, f.shader(c)).
		Build()
	c.Assert(err, qt.IsNil)
	return p
}

func (f *fixture) target(c *qt.C, pass *RenderPass) (*ImageView, *Framebuffer) {
	img, err := NewImageBuilder(f.dev).WithExtent(64, 32).WithFormat(gfx.FormatB8G8R8A8Srgb).Build()
	c.Assert(err, qt.IsNil)
	defer img.Destroy()
	view, err := NewImageViewBuilder(f.dev, img).Build()
	c.Assert(err, qt.IsNil)
	fb, err := NewFramebufferBuilder(f.dev, pass, 64, 32).WithAttachment(view).Build()
	c.Assert(err, qt.IsNil)
	return view, fb
}

func (f *fixture) buffers(c *qt.C, n int) (*CommandPool, []*CommandBuffer) {
	pool, err := NewCommandPoolBuilder(f.dev).Build()
	c.Assert(err, qt.IsNil)
	cbs, err := pool.Allocate(n)
	c.Assert(err, qt.IsNil)
	return pool, cbs
}

func destroyAll(rs ...gfx.Releasable) {
	for _, r := range rs {
		r.Destroy()
	}
}

func TestInstanceBuilder(t *testing.T) {
	c := qt.New(t)
	api := nativetest.New()

	b := NewInstanceBuilder(api).AddExtensions("VK_KHR_surface", "VK_KHR_surface").AddLayer("L")
	inst, err := b.Build()
	c.Assert(err, qt.IsNil)
	c.Assert(inst.Alive(), qt.IsTrue)

	_, err = b.Build()
	var pv *ProtocolViolation
	c.Assert(err, qt.ErrorAs, &pv)
	c.Assert(api.Count("CreateInstance"), qt.Equals, 1)

	inst.Destroy()
	inst.Destroy()
	c.Assert(inst.Alive(), qt.IsFalse)
	c.Assert(api.Destroys(inst.Handle()), qt.Equals, 1)
	c.Assert(api.Violations(), qt.HasLen, 0)
}

func TestInstanceCreationFailure(t *testing.T) {
	c := qt.New(t)
	api := nativetest.New()
	api.Fail("CreateInstance", native.ErrInitializationFailed)

	_, err := NewInstanceBuilder(api).Build()
	var rce *ResourceCreationError
	c.Assert(err, qt.ErrorAs, &rce)
	c.Assert(rce.Kind, qt.Equals, "Instance")
	c.Assert(err, qt.ErrorIs, native.ErrInitializationFailed)
}
