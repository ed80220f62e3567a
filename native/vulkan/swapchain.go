// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"math"

	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

type swapchain struct {
	dev    vk.Device
	vk     vk.Swapchain
	extent gfx.Extent2D
	format gfx.Format
	images []native.Handle
}

// CreateSwapchain implements native.API. The surface decides the extent
// when it reports one; the requested extent and image count are clamped to
// the surface capabilities otherwise.
func (a *API) CreateSwapchain(info native.SwapchainInfo) (native.Handle, error) {
	d, err := a.device("CreateSwapchain", info.Device)
	if err != nil {
		return native.Null, err
	}
	s, ok := a.get(info.Surface).(*surface)
	if !ok {
		return native.Null, a.unknown("CreateSwapchain", info.Surface)
	}
	var oldSwapchain vk.Swapchain
	if info.Old != native.Null {
		old, ok := a.get(info.Old).(*swapchain)
		if !ok {
			return native.Null, a.unknown("CreateSwapchain", info.Old)
		}
		oldSwapchain = old.vk
	}

	var surfaceCapabilities vk.SurfaceCapabilities
	if err := check("vk.GetPhysicalDeviceSurfaceCapabilities()", vk.GetPhysicalDeviceSurfaceCapabilities(d.gpu, s.vk, &surfaceCapabilities)); err != nil {
		return native.Null, err
	}
	surfaceCapabilities.Deref()
	surfaceCapabilities.CurrentExtent.Deref()
	surfaceCapabilities.MinImageExtent.Deref()
	surfaceCapabilities.MaxImageExtent.Deref()

	extent := info.Extent
	if surfaceCapabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = gfx.Extent2D{
			Width:  surfaceCapabilities.CurrentExtent.Width,
			Height: surfaceCapabilities.CurrentExtent.Height,
		}
	} else {
		extent.Width = clamp(extent.Width, surfaceCapabilities.MinImageExtent.Width, surfaceCapabilities.MaxImageExtent.Width)
		extent.Height = clamp(extent.Height, surfaceCapabilities.MinImageExtent.Height, surfaceCapabilities.MaxImageExtent.Height)
	}
	if extent.Empty() {
		// Minimized windows report a zero extent.
		return native.Null, native.ErrOutOfDate
	}

	imageCount := uint32(info.ImageCount)
	if imageCount < surfaceCapabilities.MinImageCount {
		imageCount = surfaceCapabilities.MinImageCount
	}
	if max := surfaceCapabilities.MaxImageCount; max > 0 && imageCount > max {
		imageCount = max
	}

	colorSpace, err := surfaceColorSpace(d.gpu, s.vk, info.Format)
	if err != nil {
		return native.Null, err
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for _, flag := range compositeAlphaFlags {
		if surfaceCapabilities.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.vk,
		MinImageCount:    imageCount,
		ImageFormat:      vk.Format(info.Format),
		ImageColorSpace:  colorSpace,
		ImageExtent:      extent2D(extent),
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     surfaceCapabilities.CurrentTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     oldSwapchain,
	}

	var sc vk.Swapchain
	if err := check("vk.CreateSwapchain()", vk.CreateSwapchain(d.vk, &scci, nil, &sc)); err != nil {
		return native.Null, err
	}
	return a.put(&swapchain{
		dev:    d.vk,
		vk:     sc,
		extent: extent,
		format: info.Format,
	}), nil
}

func clamp(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// surfaceColorSpace finds the color space the surface pairs with format.
func surfaceColorSpace(gpu vk.PhysicalDevice, srf vk.Surface, format gfx.Format) (vk.ColorSpace, error) {
	var surfaceFormatCount uint32
	if err := check("vk.GetPhysicalDeviceSurfaceFormats()", vk.GetPhysicalDeviceSurfaceFormats(gpu, srf, &surfaceFormatCount, nil)); err != nil {
		return 0, err
	}
	surfaceFormats := make([]vk.SurfaceFormat, surfaceFormatCount)
	if err := check("vk.GetPhysicalDeviceSurfaceFormats()", vk.GetPhysicalDeviceSurfaceFormats(gpu, srf, &surfaceFormatCount, surfaceFormats)); err != nil {
		return 0, err
	}
	for _, sf := range surfaceFormats[:surfaceFormatCount] {
		sf.Deref()
		// A single undefined entry means any format is accepted.
		if sf.Format == vk.Format(format) || sf.Format == vk.FormatUndefined {
			return sf.ColorSpace, nil
		}
	}
	return 0, check("vk.GetPhysicalDeviceSurfaceFormats()", vk.ErrorFormatNotSupported)
}

// DestroySwapchain implements native.API. Image handles still held are
// dropped with it.
func (a *API) DestroySwapchain(h native.Handle) {
	sc, ok := a.take(h).(*swapchain)
	if !ok {
		return
	}
	a.mutex.Lock()
	for _, img := range sc.images {
		delete(a.objects, img)
	}
	a.mutex.Unlock()
	vk.DestroySwapchain(sc.dev, sc.vk, nil)
}

func (a *API) swapchain(op string, h native.Handle) (*swapchain, error) {
	sc, ok := a.get(h).(*swapchain)
	if !ok {
		return nil, a.unknown(op, h)
	}
	return sc, nil
}

// SwapchainExtent implements native.API.
func (a *API) SwapchainExtent(h native.Handle) gfx.Extent2D {
	sc, err := a.swapchain("SwapchainExtent", h)
	if err != nil {
		return gfx.Extent2D{}
	}
	return sc.extent
}

// SwapchainFormat implements native.API.
func (a *API) SwapchainFormat(h native.Handle) gfx.Format {
	sc, err := a.swapchain("SwapchainFormat", h)
	if err != nil {
		return gfx.FormatUndefined
	}
	return sc.format
}

// SwapchainImages implements native.API. Handles that are still live are
// returned again; destroyed ones are replaced.
func (a *API) SwapchainImages(h native.Handle) ([]native.Handle, error) {
	sc, err := a.swapchain("SwapchainImages", h)
	if err != nil {
		return nil, err
	}

	var numImages uint32
	if err := check("vk.GetSwapchainImages()", vk.GetSwapchainImages(sc.dev, sc.vk, &numImages, nil)); err != nil {
		return nil, err
	}
	swapchainImages := make([]vk.Image, numImages)
	if err := check("vk.GetSwapchainImages()", vk.GetSwapchainImages(sc.dev, sc.vk, &numImages, swapchainImages)); err != nil {
		return nil, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	handles := make([]native.Handle, numImages)
	for i, img := range swapchainImages[:numImages] {
		if i < len(sc.images) {
			if _, live := a.objects[sc.images[i]]; live {
				handles[i] = sc.images[i]
				continue
			}
		}
		a.next++
		a.objects[a.next] = &image{dev: sc.dev, vk: img, borrowed: true}
		handles[i] = a.next
	}
	sc.images = handles
	return append([]native.Handle(nil), handles...), nil
}

// AcquireNextImage implements native.API. A suboptimal swapchain still
// returns its image; the following present reports it out of date.
func (a *API) AcquireNextImage(h, semaphore native.Handle) (uint32, error) {
	sc, err := a.swapchain("AcquireNextImage", h)
	if err != nil {
		return 0, err
	}
	sem, ok := a.get(semaphore).(*syncSemaphore)
	if !ok {
		return 0, a.unknown("AcquireNextImage", semaphore)
	}

	var (
		index uint32
		fence vk.Fence
	)
	result := vk.AcquireNextImage(sc.dev, sc.vk, math.MaxUint64, sem.vk, fence, &index)
	if result == vk.Suboptimal {
		return index, nil
	}
	if err := check("vk.AcquireNextImage()", result); err != nil {
		return 0, err
	}
	return index, nil
}
