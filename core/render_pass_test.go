// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

func TestAttachmentDefaults(t *testing.T) {
	c := qt.New(t)
	att := NewAttachmentBuilder("color").Build()
	c.Assert(att.ID(), qt.Equals, "color")
	c.Assert(att.desc, qt.DeepEquals, native.AttachmentDescription{
		Format:        gfx.FormatB8G8R8A8Srgb,
		LoadOp:        gfx.LoadOpClear,
		StoreOp:       gfx.StoreOpStore,
		InitialLayout: gfx.LayoutUndefined,
		FinalLayout:   gfx.LayoutUndefined,
	})
}

func TestRenderPassSharesAttachments(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	color := NewAttachmentBuilder("color").
		WithFinalLayout(gfx.LayoutPresentSrc).
		WithClearColor(mgl32.Vec4{0.1, 0.2, 0.3, 1}).
		Build()
	depth := NewAttachmentBuilder("depth").
		WithFormat(gfx.FormatD32Sfloat).
		WithStoreOp(gfx.StoreOpDontCare).
		WithFinalLayout(gfx.LayoutDepthStencilAttachmentOptimal).
		Build()

	pass, err := NewRenderPassBuilder(f.dev).
		AddSubpass(NewSubpassBuilder().
			AddColorAttachment(color, gfx.LayoutColorAttachmentOptimal).
			WithDepthStencilAttachment(depth, gfx.LayoutDepthStencilAttachmentOptimal).
			Build()).
		AddSubpass(NewSubpassBuilder().
			AddColorAttachment(color, gfx.LayoutColorAttachmentOptimal).
			Build()).
		AddDependency(native.External, 0).
		AddDependency(0, 1).
		Build()
	c.Assert(err, qt.IsNil)
	defer pass.Destroy()

	c.Assert(pass.AttachmentCount(), qt.Equals, 2)
	c.Assert(pass.Attachments()[0].ID(), qt.Equals, "color")
	c.Assert(pass.clearValues()[0], qt.Equals, [4]float32{0.1, 0.2, 0.3, 1})
}

func TestRenderPassConfiguration(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	color := NewAttachmentBuilder("color").Build()
	other := NewAttachmentBuilder("color").WithLoadOp(gfx.LoadOpLoad).Build()
	tests := []struct {
		about string
		build *RenderPassBuilder
	}{{
		about: "no subpasses",
		build: NewRenderPassBuilder(f.dev),
	}, {
		about: "conflicting attachment",
		build: NewRenderPassBuilder(f.dev).
			AddSubpass(NewSubpassBuilder().AddColorAttachment(color, gfx.LayoutColorAttachmentOptimal).Build()).
			AddSubpass(NewSubpassBuilder().AddColorAttachment(other, gfx.LayoutColorAttachmentOptimal).Build()),
	}, {
		about: "dependency on a missing subpass",
		build: NewRenderPassBuilder(f.dev).
			AddSubpass(NewSubpassBuilder().AddColorAttachment(color, gfx.LayoutColorAttachmentOptimal).Build()).
			AddDependency(0, 3),
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			_, err := test.build.Build()
			var rce *ResourceCreationError
			c.Assert(err, qt.ErrorAs, &rce)
			c.Assert(rce.Kind, qt.Equals, "RenderPass")
			c.Assert(err, qt.ErrorIs, ErrInvalidConfiguration)
		})
	}
	c.Assert(f.api.Count("CreateRenderPass"), qt.Equals, 0)
}

func TestFramebufferAttachmentCount(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	defer f.teardown(c)

	pass := f.renderPass(c)
	defer pass.Destroy()
	_, err := NewFramebufferBuilder(f.dev, pass, 64, 64).Build()
	c.Assert(err, qt.ErrorIs, ErrInvalidConfiguration)
	c.Assert(f.api.Count("CreateFramebuffer"), qt.Equals, 0)
}
