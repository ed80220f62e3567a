// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/internal/ownership"
	"github.com/devblok/vksafe/native"
)

// Swapchain defaults.
const (
	DefaultSwapchainSize   = 3
	DefaultSwapchainFormat = gfx.FormatB8G8R8A8Srgb
	DefaultPresentMode     = gfx.PresentFifo
)

// Swapchain is a ring of presentable images for a surface. It depends on
// its device and surface; its images depend on it.
type Swapchain struct {
	resource
	dev     *Device
	surface *Surface
	extent  gfx.Extent2D
	format  gfx.Format
	count   int

	// images caches the node of each ring image without holding a
	// reference, so that the swapchain and its images do not keep each
	// other alive.
	images []*ownership.Node
}

// SwapchainBuilder configures a Swapchain.
type SwapchainBuilder struct {
	builder
	dev     *Device
	surface *Surface
	old     *Swapchain
	info    native.SwapchainInfo
}

// NewSwapchainBuilder starts configuring a swapchain presenting to surface.
// Unless set otherwise the extent follows the surface.
func NewSwapchainBuilder(dev *Device, surface *Surface) *SwapchainBuilder {
	return &SwapchainBuilder{
		dev:     dev,
		surface: surface,
		info: native.SwapchainInfo{
			ImageCount:  DefaultSwapchainSize,
			Format:      DefaultSwapchainFormat,
			PresentMode: DefaultPresentMode,
		},
	}
}

func (b *SwapchainBuilder) WithExtent(width, height uint32) *SwapchainBuilder {
	b.info.Extent = gfx.Extent2D{Width: width, Height: height}
	return b
}

// WithImageCount sets the number of images in the ring.
func (b *SwapchainBuilder) WithImageCount(n int) *SwapchainBuilder {
	b.info.ImageCount = n
	return b
}

func (b *SwapchainBuilder) WithFormat(format gfx.Format) *SwapchainBuilder {
	b.info.Format = format
	return b
}

func (b *SwapchainBuilder) WithPresentMode(mode gfx.PresentMode) *SwapchainBuilder {
	b.info.PresentMode = mode
	return b
}

// WithOldSwapchain marks the swapchain being replaced after the surface
// changed. The old swapchain must still be destroyed by its owner.
func (b *SwapchainBuilder) WithOldSwapchain(old *Swapchain) *SwapchainBuilder {
	b.old = old
	return b
}

// Build creates the swapchain.
func (b *SwapchainBuilder) Build() (*Swapchain, error) {
	if err := b.consume("Swapchain"); err != nil {
		return nil, err
	}
	const op = "SwapchainBuilder.Build"
	if b.dev == nil {
		return nil, missing(op, "device")
	}
	if b.surface == nil {
		return nil, missing(op, "surface")
	}
	deps := []*resource{&b.dev.resource, &b.surface.resource}
	if b.old != nil {
		deps = append(deps, &b.old.resource)
	}
	if err := live(op, deps...); err != nil {
		return nil, err
	}
	if b.old != nil && b.old.surface != b.surface {
		return nil, violation(op, "old swapchain presents to another surface")
	}
	if b.info.ImageCount < 1 {
		return nil, creationError("Swapchain", errors.Wrapf(ErrInvalidConfiguration, "image count %d", b.info.ImageCount))
	}

	api := b.dev.env.api
	info := b.info
	info.Device = b.dev.handle
	info.Surface = b.surface.handle
	if b.old != nil {
		info.Old = b.old.handle
	}
	h, err := api.CreateSwapchain(info)
	if err != nil {
		return nil, creationError("Swapchain", err)
	}
	images, err := api.SwapchainImages(h)
	if err != nil {
		api.DestroySwapchain(h)
		return nil, creationError("Swapchain", errors.Wrap(err, "swapchain images"))
	}

	sc := &Swapchain{
		resource: newResource(b.dev.env, "Swapchain", h, api.DestroySwapchain, b.dev.node(), b.surface.node()),
		dev:      b.dev,
		surface:  b.surface,
		extent:   api.SwapchainExtent(h),
		format:   api.SwapchainFormat(h),
		count:    len(images),
		images:   make([]*ownership.Node, len(images)),
	}
	sc.env.log.WithFields(logrus.Fields{
		"extent": sc.extent,
		"format": sc.format,
		"images": sc.count,
	}).Debug("swapchain configured")
	return sc, nil
}

// Extent returns the size of the swapchain images.
func (s *Swapchain) Extent() gfx.Extent2D {
	return s.extent
}

func (s *Swapchain) Format() gfx.Format {
	return s.format
}

// ImageCount returns the number of images in the ring.
func (s *Swapchain) ImageCount() int {
	return s.count
}

// Images returns a reference to every image of the ring, in ring order.
// Calling Images again yields new references to the same images. Each
// returned image must be destroyed by the caller.
func (s *Swapchain) Images() ([]*Image, error) {
	if err := live("Swapchain.Images", &s.resource); err != nil {
		return nil, err
	}
	handles, err := s.env.api.SwapchainImages(s.handle)
	if err != nil {
		return nil, &ExecutionError{Op: "Swapchain.Images", Err: err}
	}
	if len(handles) != s.count {
		return nil, &ExecutionError{
			Op:  "Swapchain.Images",
			Err: errors.Errorf("swapchain reported %d images, expected %d", len(handles), s.count),
		}
	}

	images := make([]*Image, len(handles))
	for i, h := range handles {
		img := &Image{
			dev:         s.dev,
			format:      s.format,
			extent:      gfx.Extent3D{Width: s.extent.Width, Height: s.extent.Height, Depth: 1},
			presentable: true,
		}
		if n := s.images[i]; n != nil && n.Alive() {
			img.resource = resource{env: s.env, kind: "Image", handle: h, ref: ownership.NewRef(n.Retain())}
		} else {
			img.resource = newResource(s.env, "Image", h, s.env.api.DestroyImage, s.node())
			s.images[i] = img.node()
		}
		images[i] = img
	}
	return images, nil
}

// AcquireNextImage asks for the index of the next image to render into.
// semaphore is signaled once the image is ready. The call does not wait
// for the GPU.
func (s *Swapchain) AcquireNextImage(semaphore *Semaphore) (uint32, error) {
	const op = "Swapchain.AcquireNextImage"
	if semaphore == nil {
		return 0, missing(op, "semaphore")
	}
	if err := live(op, &s.resource, &semaphore.resource); err != nil {
		return 0, err
	}
	if err := s.dev.sameDevice(op, semaphore.dev); err != nil {
		return 0, err
	}
	index, err := s.env.api.AcquireNextImage(s.handle, semaphore.handle)
	if err != nil {
		return 0, presentationError(err)
	}
	return index, nil
}

func presentationError(err error) *PresentationError {
	if errors.Is(err, native.ErrOutOfDate) {
		return &PresentationError{Kind: OutOfDate, Err: err}
	}
	return &PresentationError{Kind: Fatal, Err: err}
}
