// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

// Attachment defaults.
const (
	DefaultAttachmentFormat = gfx.FormatB8G8R8A8Srgb
)

// Attachment describes an image slot of a render pass. Attachments are
// identified by id: subpasses using the same id share the slot.
type Attachment struct {
	id    string
	desc  native.AttachmentDescription
	clear mgl32.Vec4
}

// ID returns the identifier the attachment was built with.
func (a Attachment) ID() string {
	return a.id
}

// ClearColor returns the color the attachment is cleared to when its load
// operation is LoadOpClear.
func (a Attachment) ClearColor() mgl32.Vec4 {
	return a.clear
}

// AttachmentBuilder configures an Attachment.
type AttachmentBuilder struct {
	a Attachment
}

// NewAttachmentBuilder starts describing the attachment identified by id.
// It defaults to a cleared and stored B8G8R8A8 sRGB color attachment with
// undefined initial and final layouts.
func NewAttachmentBuilder(id string) *AttachmentBuilder {
	return &AttachmentBuilder{a: Attachment{
		id: id,
		desc: native.AttachmentDescription{
			Format:        DefaultAttachmentFormat,
			LoadOp:        gfx.LoadOpClear,
			StoreOp:       gfx.StoreOpStore,
			InitialLayout: gfx.LayoutUndefined,
			FinalLayout:   gfx.LayoutUndefined,
		},
		clear: mgl32.Vec4{0, 0, 0, 1},
	}}
}

func (b *AttachmentBuilder) WithFormat(format gfx.Format) *AttachmentBuilder {
	b.a.desc.Format = format
	return b
}

func (b *AttachmentBuilder) WithInitialLayout(layout gfx.ImageLayout) *AttachmentBuilder {
	b.a.desc.InitialLayout = layout
	return b
}

// WithFinalLayout sets the layout the image is left in, PresentSrc for
// swapchain images that are presented next.
func (b *AttachmentBuilder) WithFinalLayout(layout gfx.ImageLayout) *AttachmentBuilder {
	b.a.desc.FinalLayout = layout
	return b
}

func (b *AttachmentBuilder) WithLoadOp(op gfx.LoadOp) *AttachmentBuilder {
	b.a.desc.LoadOp = op
	return b
}

func (b *AttachmentBuilder) WithStoreOp(op gfx.StoreOp) *AttachmentBuilder {
	b.a.desc.StoreOp = op
	return b
}

func (b *AttachmentBuilder) WithClearColor(color mgl32.Vec4) *AttachmentBuilder {
	b.a.clear = color
	return b
}

// Build returns the attachment. Attachments are plain values.
func (b *AttachmentBuilder) Build() Attachment {
	return b.a
}

type attachmentUse struct {
	att    Attachment
	layout gfx.ImageLayout
}

// Subpass is one stage of a render pass.
type Subpass struct {
	colors   []attachmentUse
	depth    attachmentUse
	hasDepth bool
}

// SubpassBuilder configures a Subpass.
type SubpassBuilder struct {
	s Subpass
}

func NewSubpassBuilder() *SubpassBuilder {
	return &SubpassBuilder{}
}

// AddColorAttachment writes att in layout during the subpass.
func (b *SubpassBuilder) AddColorAttachment(att Attachment, layout gfx.ImageLayout) *SubpassBuilder {
	b.s.colors = append(b.s.colors, attachmentUse{att: att, layout: layout})
	return b
}

func (b *SubpassBuilder) WithDepthStencilAttachment(att Attachment, layout gfx.ImageLayout) *SubpassBuilder {
	b.s.depth = attachmentUse{att: att, layout: layout}
	b.s.hasDepth = true
	return b
}

// Build returns the subpass. Subpasses are plain values.
func (b *SubpassBuilder) Build() Subpass {
	s := b.s
	s.colors = append([]attachmentUse(nil), b.s.colors...)
	return s
}

// ColorAttachments returns the number of color attachments written.
func (s Subpass) ColorAttachments() int {
	return len(s.colors)
}

// RenderPass describes the attachments and subpasses of a rendering
// operation. It depends on its device.
type RenderPass struct {
	resource
	dev         *Device
	attachments []Attachment
	colors      []int
}

// AttachmentCount returns the number of distinct attachments.
func (r *RenderPass) AttachmentCount() int {
	return len(r.attachments)
}

// Attachments returns the distinct attachments in slot order.
func (r *RenderPass) Attachments() []Attachment {
	return r.attachments
}

// clearValues returns one clear color per attachment slot.
func (r *RenderPass) clearValues() [][4]float32 {
	values := make([][4]float32, len(r.attachments))
	for i, att := range r.attachments {
		values[i] = att.clear
	}
	return values
}

// RenderPassBuilder configures a RenderPass.
type RenderPassBuilder struct {
	builder
	dev          *Device
	subpasses    []Subpass
	dependencies []native.SubpassDependency
}

func NewRenderPassBuilder(dev *Device) *RenderPassBuilder {
	return &RenderPassBuilder{dev: dev}
}

func (b *RenderPassBuilder) AddSubpass(s Subpass) *RenderPassBuilder {
	b.subpasses = append(b.subpasses, s)
	return b
}

// AddDependency orders subpass dst after src. Use native.External for
// work outside the render pass. Without any dependency the first subpass
// depends on external work.
func (b *RenderPassBuilder) AddDependency(src, dst int) *RenderPassBuilder {
	b.dependencies = append(b.dependencies, native.SubpassDependency{Src: src, Dst: dst})
	return b
}

// Build creates the render pass.
func (b *RenderPassBuilder) Build() (*RenderPass, error) {
	if err := b.consume("RenderPass"); err != nil {
		return nil, err
	}
	if b.dev == nil {
		return nil, missing("RenderPassBuilder.Build", "device")
	}
	if err := live("RenderPassBuilder.Build", &b.dev.resource); err != nil {
		return nil, err
	}
	if len(b.subpasses) == 0 {
		return nil, creationError("RenderPass", errors.Wrap(ErrInvalidConfiguration, "no subpasses"))
	}

	var (
		attachments []Attachment
		slots       = make(map[string]int)
	)
	slot := func(use attachmentUse) (native.AttachmentReference, error) {
		if i, ok := slots[use.att.id]; ok {
			if attachments[i] != use.att {
				return native.AttachmentReference{}, errors.Wrapf(ErrInvalidConfiguration, "attachment %q described twice", use.att.id)
			}
			return native.AttachmentReference{Attachment: i, Layout: use.layout}, nil
		}
		slots[use.att.id] = len(attachments)
		attachments = append(attachments, use.att)
		return native.AttachmentReference{Attachment: len(attachments) - 1, Layout: use.layout}, nil
	}

	info := native.RenderPassInfo{Device: b.dev.handle}
	colors := make([]int, len(b.subpasses))
	for i, sp := range b.subpasses {
		var desc native.SubpassDescription
		for _, use := range sp.colors {
			ref, err := slot(use)
			if err != nil {
				return nil, creationError("RenderPass", err)
			}
			desc.ColorAttachments = append(desc.ColorAttachments, ref)
		}
		if sp.hasDepth {
			ref, err := slot(sp.depth)
			if err != nil {
				return nil, creationError("RenderPass", err)
			}
			desc.HasDepthStencil = true
			desc.DepthStencil = ref
		}
		colors[i] = len(sp.colors)
		info.Subpasses = append(info.Subpasses, desc)
	}
	for _, a := range attachments {
		info.Attachments = append(info.Attachments, a.desc)
	}

	info.Dependencies = b.dependencies
	if len(info.Dependencies) == 0 {
		info.Dependencies = []native.SubpassDependency{{Src: native.External, Dst: 0}}
	}
	for _, dep := range info.Dependencies {
		if !validSubpass(dep.Src, len(b.subpasses)) || !validSubpass(dep.Dst, len(b.subpasses)) {
			return nil, creationError("RenderPass", errors.Wrapf(ErrInvalidConfiguration, "dependency %d -> %d", dep.Src, dep.Dst))
		}
	}

	h, err := b.dev.env.api.CreateRenderPass(info)
	if err != nil {
		return nil, creationError("RenderPass", err)
	}
	return &RenderPass{
		resource:    newResource(b.dev.env, "RenderPass", h, b.dev.env.api.DestroyRenderPass, b.dev.node()),
		dev:         b.dev,
		attachments: attachments,
		colors:      colors,
	}, nil
}

func validSubpass(i, n int) bool {
	return i == native.External || (i >= 0 && i < n)
}
