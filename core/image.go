// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

// Image is shared: every reference from Swapchain.Images or Clone must be
// destroyed, and the image goes away after the last one.
type Image struct {
	resource
	dev         *Device
	format      gfx.Format
	extent      gfx.Extent3D
	presentable bool
}

// Clone returns another reference to the same image.
func (i *Image) Clone() (*Image, error) {
	if err := live("Image.Clone", &i.resource); err != nil {
		return nil, err
	}
	c := *i
	c.ref = i.ref.Clone()
	return &c, nil
}

func (i *Image) Format() gfx.Format {
	return i.format
}

func (i *Image) Extent() gfx.Extent3D {
	return i.extent
}

// Presentable reports whether the image belongs to a swapchain.
func (i *Image) Presentable() bool {
	return i.presentable
}

// ImageBuilder configures a standalone image such as a depth target.
type ImageBuilder struct {
	builder
	dev  *Device
	info native.ImageInfo
}

// NewImageBuilder starts configuring a 2D image on dev.
func NewImageBuilder(dev *Device) *ImageBuilder {
	return &ImageBuilder{
		dev: dev,
		info: native.ImageInfo{
			Format: gfx.FormatR8G8B8A8Unorm,
			Usage:  gfx.UsageColorAttachment,
		},
	}
}

func (b *ImageBuilder) WithExtent(width, height uint32) *ImageBuilder {
	b.info.Extent = gfx.Extent3D{Width: width, Height: height, Depth: 1}
	return b
}

func (b *ImageBuilder) WithFormat(format gfx.Format) *ImageBuilder {
	b.info.Format = format
	return b
}

func (b *ImageBuilder) WithUsage(usage gfx.ImageUsage) *ImageBuilder {
	b.info.Usage = usage
	return b
}

// Build creates the image and its memory.
func (b *ImageBuilder) Build() (*Image, error) {
	if err := b.consume("Image"); err != nil {
		return nil, err
	}
	if b.dev == nil {
		return nil, missing("ImageBuilder.Build", "device")
	}
	if err := live("ImageBuilder.Build", &b.dev.resource); err != nil {
		return nil, err
	}
	if b.info.Extent.Width == 0 || b.info.Extent.Height == 0 {
		return nil, creationError("Image", errors.Wrap(ErrInvalidConfiguration, "empty extent"))
	}
	info := b.info
	info.Device = b.dev.handle
	h, err := b.dev.env.api.CreateImage(info)
	if err != nil {
		return nil, creationError("Image", err)
	}
	return &Image{
		resource: newResource(b.dev.env, "Image", h, b.dev.env.api.DestroyImage, b.dev.node()),
		dev:      b.dev,
		format:   info.Format,
		extent:   info.Extent,
	}, nil
}

// ImageView is a view on an image, usable as a framebuffer attachment.
type ImageView struct {
	resource
	dev    *Device
	image  *Image
	format gfx.Format
	extent gfx.Extent2D
}

func (v *ImageView) Format() gfx.Format {
	return v.format
}

// ImageViewBuilder configures an ImageView.
type ImageViewBuilder struct {
	builder
	dev        *Device
	image      *Image
	info       native.ImageViewInfo
	withFormat bool
	withAspect bool
}

// NewImageViewBuilder starts configuring a 2D view on image covering its
// format.
func NewImageViewBuilder(dev *Device, image *Image) *ImageViewBuilder {
	return &ImageViewBuilder{
		dev:   dev,
		image: image,
		info: native.ImageViewInfo{
			ViewType: gfx.ViewType2D,
		},
	}
}

func (b *ImageViewBuilder) WithViewType(t gfx.ImageViewType) *ImageViewBuilder {
	b.info.ViewType = t
	return b
}

// WithFormat overrides the format, which defaults to the image format.
func (b *ImageViewBuilder) WithFormat(format gfx.Format) *ImageViewBuilder {
	b.info.Format = format
	b.withFormat = true
	return b
}

// WithAspect selects the aspect to view. Without it depth formats view
// depth and every other format views color.
func (b *ImageViewBuilder) WithAspect(aspect gfx.ImageAspect) *ImageViewBuilder {
	b.info.Aspect = aspect
	b.withAspect = true
	return b
}

// Build creates the view.
func (b *ImageViewBuilder) Build() (*ImageView, error) {
	if err := b.consume("ImageView"); err != nil {
		return nil, err
	}
	const op = "ImageViewBuilder.Build"
	if b.dev == nil {
		return nil, missing(op, "device")
	}
	if b.image == nil {
		return nil, missing(op, "image")
	}
	if err := live(op, &b.dev.resource, &b.image.resource); err != nil {
		return nil, err
	}
	if err := b.dev.sameDevice(op, b.image.dev); err != nil {
		return nil, err
	}
	info := b.info
	info.Device = b.dev.handle
	info.Image = b.image.handle
	if !b.withFormat {
		info.Format = b.image.format
	}
	if !b.withAspect {
		info.Aspect = gfx.AspectColor
		if info.Format.IsDepth() {
			info.Aspect = gfx.AspectDepth
		}
	}
	h, err := b.dev.env.api.CreateImageView(info)
	if err != nil {
		return nil, creationError("ImageView", err)
	}
	return &ImageView{
		resource: newResource(b.dev.env, "ImageView", h, b.dev.env.api.DestroyImageView, b.dev.node(), b.image.node()),
		dev:      b.dev,
		image:    b.image,
		format:   info.Format,
		extent:   gfx.Extent2D{Width: b.image.extent.Width, Height: b.image.extent.Height},
	}, nil
}
