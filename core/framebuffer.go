// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/internal/ownership"
	"github.com/devblok/vksafe/native"
)

// Framebuffer binds image views to the attachment slots of a render pass.
// It depends on the device, the render pass and every view.
type Framebuffer struct {
	resource
	dev    *Device
	pass   *RenderPass
	extent gfx.Extent2D
}

// Extent returns the size of the framebuffer.
func (f *Framebuffer) Extent() gfx.Extent2D {
	return f.extent
}

// FramebufferBuilder configures a Framebuffer.
type FramebufferBuilder struct {
	builder
	dev    *Device
	pass   *RenderPass
	views  []*ImageView
	extent gfx.Extent2D
}

// NewFramebufferBuilder starts configuring a framebuffer of the given size
// for pass.
func NewFramebufferBuilder(dev *Device, pass *RenderPass, width, height uint32) *FramebufferBuilder {
	return &FramebufferBuilder{
		dev:    dev,
		pass:   pass,
		extent: gfx.Extent2D{Width: width, Height: height},
	}
}

// WithAttachment fills the next attachment slot with view.
func (b *FramebufferBuilder) WithAttachment(view *ImageView) *FramebufferBuilder {
	b.views = append(b.views, view)
	return b
}

// Build creates the framebuffer.
func (b *FramebufferBuilder) Build() (*Framebuffer, error) {
	if err := b.consume("Framebuffer"); err != nil {
		return nil, err
	}
	const op = "FramebufferBuilder.Build"
	if b.dev == nil {
		return nil, missing(op, "device")
	}
	if b.pass == nil {
		return nil, missing(op, "render pass")
	}
	deps := []*resource{&b.dev.resource, &b.pass.resource}
	devs := []*Device{b.pass.dev}
	for _, v := range b.views {
		if v == nil {
			return nil, missing(op, "image view")
		}
		deps = append(deps, &v.resource)
		devs = append(devs, v.dev)
	}
	if err := live(op, deps...); err != nil {
		return nil, err
	}
	if err := b.dev.sameDevice(op, devs...); err != nil {
		return nil, err
	}
	if len(b.views) != b.pass.AttachmentCount() {
		return nil, creationError("Framebuffer", errors.Wrapf(ErrInvalidConfiguration,
			"%d attachments for a render pass with %d", len(b.views), b.pass.AttachmentCount()))
	}
	if b.extent.Empty() {
		return nil, creationError("Framebuffer", errors.Wrap(ErrInvalidConfiguration, "empty extent"))
	}

	info := native.FramebufferInfo{
		Device:     b.dev.handle,
		RenderPass: b.pass.handle,
		Extent:     b.extent,
	}
	for _, v := range b.views {
		info.Attachments = append(info.Attachments, v.handle)
	}
	h, err := b.dev.env.api.CreateFramebuffer(info)
	if err != nil {
		return nil, creationError("Framebuffer", err)
	}
	parents := []*ownership.Node{b.dev.node(), b.pass.node()}
	for _, v := range b.views {
		parents = append(parents, v.node())
	}
	return &Framebuffer{
		resource: newResource(b.dev.env, "Framebuffer", h, b.dev.env.api.DestroyFramebuffer, parents...),
		dev:      b.dev,
		pass:     b.pass,
		extent:   b.extent,
	}, nil
}
