// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package native describes the handle-based graphics API that the safety
// layer drives. Implementations perform the actual driver calls and are
// assumed to be correct and atomic: a creation call either returns a live
// handle or an error, and destruction never fails.
//
// Handles are opaque. Nothing outside an implementation may interpret them;
// they are only passed back to the API that produced them.
package native

import (
	"fmt"

	"github.com/devblok/vksafe/gfx"
)

// Handle identifies a resource owned by an API implementation.
type Handle uint64

// Null is the handle that refers to nothing.
const Null Handle = 0

func (h Handle) String() string {
	return fmt.Sprintf("%#x", uint64(h))
}

// API is the complete set of native operations the safety layer consumes.
// Every Create*/Allocate* call is paired with a Destroy*/Free* call; the
// destroy side takes only the handle, the implementation remembers the
// parent objects it needs.
type API interface {
	CreateInstance(info InstanceInfo) (Handle, error)
	DestroyInstance(instance Handle)

	// PhysicalDevices describes every physical device visible to instance.
	PhysicalDevices(instance Handle) ([]PhysicalDevice, error)

	// SurfaceSupport reports whether a queue family of a physical device
	// can present to surface.
	SurfaceSupport(instance Handle, physicalDevice, family int, surface Handle) (bool, error)

	CreateSurface(instance Handle, src SurfaceSource) (Handle, error)
	DestroySurface(surface Handle)

	CreateDevice(info DeviceInfo) (Handle, error)
	DestroyDevice(device Handle)
	DeviceQueue(device Handle, family, index int) (Handle, error)
	WaitIdle(device Handle) error

	CreateSwapchain(info SwapchainInfo) (Handle, error)
	DestroySwapchain(swapchain Handle)
	SwapchainExtent(swapchain Handle) gfx.Extent2D
	SwapchainFormat(swapchain Handle) gfx.Format
	SwapchainImages(swapchain Handle) ([]Handle, error)
	AcquireNextImage(swapchain, semaphore Handle) (uint32, error)

	CreateImage(info ImageInfo) (Handle, error)
	// DestroyImage releases an image. For images owned by a swapchain it
	// only forgets the handle.
	DestroyImage(image Handle)

	CreateImageView(info ImageViewInfo) (Handle, error)
	DestroyImageView(view Handle)

	CreateRenderPass(info RenderPassInfo) (Handle, error)
	DestroyRenderPass(renderPass Handle)

	CreateFramebuffer(info FramebufferInfo) (Handle, error)
	DestroyFramebuffer(framebuffer Handle)
	FramebufferExtent(framebuffer Handle) gfx.Extent2D

	CreatePipelineLayout(info PipelineLayoutInfo) (Handle, error)
	DestroyPipelineLayout(layout Handle)

	CreateShaderModule(info ShaderModuleInfo) (Handle, error)
	DestroyShaderModule(module Handle)

	CreateGraphicsPipeline(info GraphicsPipelineInfo) (Handle, error)
	DestroyPipeline(pipeline Handle)

	CreateCommandPool(info CommandPoolInfo) (Handle, error)
	DestroyCommandPool(pool Handle)
	ResetCommandPool(pool Handle) error
	AllocateCommandBuffers(pool Handle, count int) ([]Handle, error)
	FreeCommandBuffers(pool Handle, buffers []Handle)

	BeginCommandBuffer(cmd Handle) error
	EndCommandBuffer(cmd Handle) error
	CmdBeginRenderPass(cmd Handle, begin RenderPassBegin)
	CmdEndRenderPass(cmd Handle)
	CmdBindGraphicsPipeline(cmd, pipeline Handle)
	CmdSetViewport(cmd Handle, viewport gfx.Viewport)
	CmdSetScissor(cmd Handle, scissor gfx.Rect2D)
	CmdDraw(cmd Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32)

	CreateFence(device Handle, signaled bool) (Handle, error)
	DestroyFence(fence Handle)
	// WaitFence blocks until fence is signaled. There is no timeout.
	WaitFence(fence Handle) error
	ResetFence(fence Handle) error

	CreateSemaphore(device Handle) (Handle, error)
	DestroySemaphore(semaphore Handle)

	QueueSubmit(queue Handle, submit Submit) error
	QueuePresent(queue Handle, present Present) error
}

// SurfaceSource creates a platform surface for a native instance object.
// The argument is the implementation's own instance value, e.g. a
// vk.Instance; the result is the raw surface pointer.
type SurfaceSource interface {
	NewSurface(instance interface{}) (uintptr, error)
}

// SurfaceSourceFunc adapts a function to SurfaceSource.
type SurfaceSourceFunc func(instance interface{}) (uintptr, error)

// NewSurface implements SurfaceSource.
func (f SurfaceSourceFunc) NewSurface(instance interface{}) (uintptr, error) {
	return f(instance)
}
