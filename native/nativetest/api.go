// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package nativetest

import (
	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

var _ native.API = (*API)(nil)

func (a *API) CreateInstance(info native.InstanceInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.create("CreateInstance", KindInstance, &object{})
}

func (a *API) DestroyInstance(instance native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyInstance", instance, KindInstance)
}

func (a *API) PhysicalDevices(instance native.Handle) ([]native.PhysicalDevice, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("PhysicalDevices", instance)
	a.lookup("PhysicalDevices", instance, KindInstance)
	if err := a.failure("PhysicalDevices"); err != nil {
		return nil, err
	}
	devices := make([]native.PhysicalDevice, len(a.Devices))
	copy(devices, a.Devices)
	return devices, nil
}

func (a *API) SurfaceSupport(instance native.Handle, physicalDevice, family int, surface native.Handle) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("SurfaceSupport", surface, physicalDevice, family)
	a.lookup("SurfaceSupport", surface, KindSurface)
	if err := a.failure("SurfaceSupport"); err != nil {
		return false, err
	}
	if a.PresentSupport == nil {
		return true, nil
	}
	return a.PresentSupport(physicalDevice, family), nil
}

// CreateSurface calls src with the instance handle as the native instance
// value. The pointer src returns is ignored.
func (a *API) CreateSurface(instance native.Handle, src native.SurfaceSource) (native.Handle, error) {
	if _, err := src.NewSurface(instance); err != nil {
		return native.Null, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateSurface", instance, KindInstance)
	return a.create("CreateSurface", KindSurface, &object{extent: DefaultExtent}, instance)
}

func (a *API) DestroySurface(surface native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroySurface", surface, KindSurface)
}

func (a *API) CreateDevice(info native.DeviceInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if info.PhysicalDevice < 0 || info.PhysicalDevice >= len(a.Devices) {
		a.violate("CreateDevice: no physical device %d", info.PhysicalDevice)
		return native.Null, native.ErrInitializationFailed
	}
	gpu := a.Devices[info.PhysicalDevice]
	for _, ext := range info.Extensions {
		if !gpu.HasExtension(ext) {
			a.log("CreateDevice", native.Null)
			return native.Null, native.ErrUnsupported
		}
	}
	for _, q := range info.Queues {
		if q.Family < 0 || q.Family >= len(gpu.QueueFamilies) || q.Count > gpu.QueueFamilies[q.Family].Count {
			a.violate("CreateDevice: queue request %+v exceeds the device", q)
		}
	}
	return a.create("CreateDevice", KindDevice, &object{}, info.Instance)
}

func (a *API) DestroyDevice(device native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyDevice", device, KindDevice)
}

func (a *API) DeviceQueue(device native.Handle, family, index int) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("DeviceQueue", device, KindDevice)
	key := [3]int{int(device), family, index}
	if h, ok := a.queues[key]; ok {
		a.log("DeviceQueue", h)
		return h, nil
	}
	h, err := a.create("DeviceQueue", KindQueue, &object{}, device)
	if err != nil {
		return native.Null, err
	}
	a.queues[key] = h
	return h, nil
}

func (a *API) WaitIdle(device native.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("WaitIdle", device)
	a.lookup("WaitIdle", device, KindDevice)
	return a.failure("WaitIdle")
}

func (a *API) CreateSwapchain(info native.SwapchainInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateSwapchain", info.Device, KindDevice)
	srf := a.lookup("CreateSwapchain", info.Surface, KindSurface)
	if info.Old != native.Null {
		if old := a.lookup("CreateSwapchain", info.Old, KindSwapchain); old != nil {
			old.outOfDate = true
		}
	}
	extent := info.Extent
	if extent.Empty() && srf != nil {
		extent = srf.extent
	}
	count := info.ImageCount
	if count < 1 {
		count = 1
	}
	sc := &object{extent: extent, format: info.Format, surface: info.Surface}
	h, err := a.create("CreateSwapchain", KindSwapchain, sc, info.Device, info.Surface)
	if err != nil {
		return native.Null, err
	}
	for i := 0; i < count; i++ {
		a.last++
		a.objects[a.last] = &object{kind: KindImage, borrowed: true, parents: []native.Handle{h}}
		sc.images = append(sc.images, a.last)
	}
	return h, nil
}

func (a *API) DestroySwapchain(swapchain native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sc := a.destroy("DestroySwapchain", swapchain, KindSwapchain)
	if sc == nil {
		return
	}
	for _, img := range sc.images {
		a.objects[img].destroyed = true
	}
}

func (a *API) SwapchainExtent(swapchain native.Handle) gfx.Extent2D {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sc := a.lookup("SwapchainExtent", swapchain, KindSwapchain); sc != nil {
		return sc.extent
	}
	return gfx.Extent2D{}
}

func (a *API) SwapchainFormat(swapchain native.Handle) gfx.Format {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sc := a.lookup("SwapchainFormat", swapchain, KindSwapchain); sc != nil {
		return sc.format
	}
	return gfx.FormatUndefined
}

func (a *API) SwapchainImages(swapchain native.Handle) ([]native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("SwapchainImages", swapchain)
	sc := a.lookup("SwapchainImages", swapchain, KindSwapchain)
	if err := a.failure("SwapchainImages"); err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, native.ErrUnknown
	}
	images := make([]native.Handle, len(sc.images))
	copy(images, sc.images)
	for _, img := range images {
		obj := a.objects[img]
		obj.retrieved = true
		obj.destroyed = false
	}
	return images, nil
}

func (a *API) AcquireNextImage(swapchain, semaphore native.Handle) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("AcquireNextImage", swapchain, semaphore)
	sc := a.lookup("AcquireNextImage", swapchain, KindSwapchain)
	if err := a.failure("AcquireNextImage"); err != nil {
		return 0, err
	}
	if sc == nil {
		return 0, native.ErrUnknown
	}
	if sc.outOfDate {
		return 0, native.ErrOutOfDate
	}
	if sem := a.lookup("AcquireNextImage", semaphore, KindSemaphore); sem != nil {
		if sem.signaled {
			a.violate("AcquireNextImage: semaphore %v is already signaled", semaphore)
		}
		sem.signaled = true
	}
	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return index, nil
}

func (a *API) CreateImage(info native.ImageInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateImage", info.Device, KindDevice)
	return a.create("CreateImage", KindImage, &object{format: info.Format}, info.Device)
}

func (a *API) DestroyImage(image native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if img := a.destroy("DestroyImage", image, KindImage); img != nil && img.borrowed {
		img.retrieved = false
	}
}

func (a *API) CreateImageView(info native.ImageViewInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateImageView", info.Image, KindImage)
	return a.create("CreateImageView", KindImageView, &object{format: info.Format}, info.Device, info.Image)
}

func (a *API) DestroyImageView(view native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyImageView", view, KindImageView)
}

func (a *API) CreateRenderPass(info native.RenderPassInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateRenderPass", info.Device, KindDevice)
	for i, sp := range info.Subpasses {
		for _, ref := range sp.ColorAttachments {
			if ref.Attachment < 0 || ref.Attachment >= len(info.Attachments) {
				a.violate("CreateRenderPass: subpass %d references attachment %d of %d", i, ref.Attachment, len(info.Attachments))
			}
		}
	}
	return a.create("CreateRenderPass", KindRenderPass, &object{attachments: len(info.Attachments)}, info.Device)
}

func (a *API) DestroyRenderPass(renderPass native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyRenderPass", renderPass, KindRenderPass)
}

func (a *API) CreateFramebuffer(info native.FramebufferInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rp := a.lookup("CreateFramebuffer", info.RenderPass, KindRenderPass); rp != nil && rp.attachments != len(info.Attachments) {
		a.violate("CreateFramebuffer: %d attachments for a render pass with %d", len(info.Attachments), rp.attachments)
	}
	parents := []native.Handle{info.Device, info.RenderPass}
	for _, view := range info.Attachments {
		a.lookup("CreateFramebuffer", view, KindImageView)
		parents = append(parents, view)
	}
	return a.create("CreateFramebuffer", KindFramebuffer, &object{extent: info.Extent}, parents...)
}

func (a *API) DestroyFramebuffer(framebuffer native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyFramebuffer", framebuffer, KindFramebuffer)
}

func (a *API) FramebufferExtent(framebuffer native.Handle) gfx.Extent2D {
	a.mu.Lock()
	defer a.mu.Unlock()
	if fb := a.lookup("FramebufferExtent", framebuffer, KindFramebuffer); fb != nil {
		return fb.extent
	}
	return gfx.Extent2D{}
}

func (a *API) CreatePipelineLayout(info native.PipelineLayoutInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreatePipelineLayout", info.Device, KindDevice)
	return a.create("CreatePipelineLayout", KindPipelineLayout, &object{}, info.Device)
}

func (a *API) DestroyPipelineLayout(layout native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyPipelineLayout", layout, KindPipelineLayout)
}

func (a *API) CreateShaderModule(info native.ShaderModuleInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateShaderModule", info.Device, KindDevice)
	if len(info.Code) == 0 || info.Code[0] != spirvMagic {
		a.log("CreateShaderModule", native.Null)
		return native.Null, native.ErrInitializationFailed
	}
	return a.create("CreateShaderModule", KindShaderModule, &object{}, info.Device)
}

// spirvMagic is the first word of every SPIR-V binary.
const spirvMagic = 0x07230203

func (a *API) DestroyShaderModule(module native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyShaderModule", module, KindShaderModule)
}

func (a *API) CreateGraphicsPipeline(info native.GraphicsPipelineInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateGraphicsPipeline", info.Device, KindDevice)
	a.lookup("CreateGraphicsPipeline", info.RenderPass, KindRenderPass)
	for _, st := range info.Stages {
		a.lookup("CreateGraphicsPipeline", st.Module, KindShaderModule)
	}
	if info.WithLayout {
		a.lookup("CreateGraphicsPipeline", info.Layout, KindPipelineLayout)
	}
	parents := []native.Handle{info.Device, info.RenderPass}
	if info.WithLayout {
		parents = append(parents, info.Layout)
	}
	return a.create("CreateGraphicsPipeline", KindPipeline, &object{}, parents...)
}

func (a *API) DestroyPipeline(pipeline native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyPipeline", pipeline, KindPipeline)
}

func (a *API) CreateCommandPool(info native.CommandPoolInfo) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateCommandPool", info.Device, KindDevice)
	return a.create("CreateCommandPool", KindCommandPool, &object{}, info.Device)
}

func (a *API) DestroyCommandPool(pool native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyCommandPool", pool, KindCommandPool)
}

func (a *API) ResetCommandPool(pool native.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("ResetCommandPool", pool)
	a.lookup("ResetCommandPool", pool, KindCommandPool)
	if err := a.failure("ResetCommandPool"); err != nil {
		return err
	}
	for _, obj := range a.objects {
		if obj.kind == KindCommandBuffer && !obj.destroyed && obj.parents[0] == pool {
			obj.state, obj.inPass, obj.pipeline = cmdInitial, false, false
		}
	}
	return nil
}

func (a *API) AllocateCommandBuffers(pool native.Handle, count int) ([]native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("AllocateCommandBuffers", pool, KindCommandPool)
	if err := a.failure("AllocateCommandBuffers"); err != nil {
		a.log("AllocateCommandBuffers", pool, count)
		return nil, err
	}
	a.log("AllocateCommandBuffers", pool, count)
	buffers := make([]native.Handle, count)
	for i := range buffers {
		a.last++
		a.objects[a.last] = &object{kind: KindCommandBuffer, parents: []native.Handle{pool}}
		buffers[i] = a.last
	}
	return buffers, nil
}

func (a *API) FreeCommandBuffers(pool native.Handle, buffers []native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, cmd := range buffers {
		if obj := a.destroy("FreeCommandBuffers", cmd, KindCommandBuffer); obj != nil && obj.parents[0] != pool {
			a.violate("FreeCommandBuffers: %v does not belong to pool %v", cmd, pool)
		}
	}
}

func (a *API) command(op string, cmd native.Handle) *object {
	a.log(op, cmd)
	obj := a.lookup(op, cmd, KindCommandBuffer)
	if obj != nil && obj.state != cmdRecording {
		a.violate("%s: command buffer %v is not recording", op, cmd)
	}
	return obj
}

func (a *API) BeginCommandBuffer(cmd native.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("BeginCommandBuffer", cmd)
	obj := a.lookup("BeginCommandBuffer", cmd, KindCommandBuffer)
	if err := a.failure("BeginCommandBuffer"); err != nil {
		return err
	}
	if obj == nil {
		return native.ErrUnknown
	}
	if obj.state != cmdInitial {
		a.violate("BeginCommandBuffer: command buffer %v is not in the initial state", cmd)
	}
	obj.state = cmdRecording
	return nil
}

func (a *API) EndCommandBuffer(cmd native.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	obj := a.command("EndCommandBuffer", cmd)
	if err := a.failure("EndCommandBuffer"); err != nil {
		return err
	}
	if obj == nil {
		return native.ErrUnknown
	}
	if obj.inPass {
		a.violate("EndCommandBuffer: render pass still open in %v", cmd)
	}
	obj.state = cmdExecutable
	return nil
}

func (a *API) CmdBeginRenderPass(cmd native.Handle, begin native.RenderPassBegin) {
	a.mu.Lock()
	defer a.mu.Unlock()
	obj := a.command("CmdBeginRenderPass", cmd)
	a.lookup("CmdBeginRenderPass", begin.RenderPass, KindRenderPass)
	a.lookup("CmdBeginRenderPass", begin.Framebuffer, KindFramebuffer)
	if obj == nil {
		return
	}
	if obj.inPass {
		a.violate("CmdBeginRenderPass: render pass already open in %v", cmd)
	}
	obj.inPass, obj.pipeline = true, false
}

func (a *API) CmdEndRenderPass(cmd native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	obj := a.command("CmdEndRenderPass", cmd)
	if obj == nil {
		return
	}
	if !obj.inPass {
		a.violate("CmdEndRenderPass: no render pass open in %v", cmd)
	}
	obj.inPass, obj.pipeline = false, false
}

func (a *API) CmdBindGraphicsPipeline(cmd, pipeline native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	obj := a.command("CmdBindGraphicsPipeline", cmd)
	a.lookup("CmdBindGraphicsPipeline", pipeline, KindPipeline)
	if obj != nil {
		obj.pipeline = true
	}
}

func (a *API) CmdSetViewport(cmd native.Handle, viewport gfx.Viewport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.command("CmdSetViewport", cmd)
	a.calls[len(a.calls)-1].Args = []interface{}{viewport}
}

func (a *API) CmdSetScissor(cmd native.Handle, scissor gfx.Rect2D) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.command("CmdSetScissor", cmd)
	a.calls[len(a.calls)-1].Args = []interface{}{scissor}
}

func (a *API) CmdDraw(cmd native.Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	obj := a.command("CmdDraw", cmd)
	a.calls[len(a.calls)-1].Args = []interface{}{vertexCount, instanceCount, firstVertex, firstInstance}
	if obj != nil && (!obj.inPass || !obj.pipeline) {
		a.violate("CmdDraw: %v has no render pass or bound pipeline", cmd)
	}
}

func (a *API) CreateFence(device native.Handle, signaled bool) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateFence", device, KindDevice)
	return a.create("CreateFence", KindFence, &object{signaled: signaled}, device)
}

func (a *API) DestroyFence(fence native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroyFence", fence, KindFence)
}

func (a *API) WaitFence(fence native.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("WaitFence", fence)
	obj := a.lookup("WaitFence", fence, KindFence)
	if err := a.failure("WaitFence"); err != nil {
		return err
	}
	if obj == nil {
		return native.ErrUnknown
	}
	if !obj.signaled {
		return ErrWouldBlock
	}
	return nil
}

func (a *API) ResetFence(fence native.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("ResetFence", fence)
	obj := a.lookup("ResetFence", fence, KindFence)
	if err := a.failure("ResetFence"); err != nil {
		return err
	}
	if obj != nil {
		obj.signaled = false
	}
	return nil
}

func (a *API) CreateSemaphore(device native.Handle) (native.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookup("CreateSemaphore", device, KindDevice)
	return a.create("CreateSemaphore", KindSemaphore, &object{}, device)
}

func (a *API) DestroySemaphore(semaphore native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroy("DestroySemaphore", semaphore, KindSemaphore)
}

// QueueSubmit completes the submitted work immediately.
func (a *API) QueueSubmit(queue native.Handle, submit native.Submit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("QueueSubmit", queue, submit)
	a.lookup("QueueSubmit", queue, KindQueue)
	if err := a.failure("QueueSubmit"); err != nil {
		return err
	}
	if len(submit.WaitStages) != len(submit.WaitSemaphores) {
		a.violate("QueueSubmit: %d wait stages for %d semaphores", len(submit.WaitStages), len(submit.WaitSemaphores))
	}
	for _, cmd := range submit.CommandBuffers {
		if obj := a.lookup("QueueSubmit", cmd, KindCommandBuffer); obj != nil && obj.state != cmdExecutable {
			a.violate("QueueSubmit: command buffer %v is not executable", cmd)
		}
	}
	for _, sem := range submit.WaitSemaphores {
		if obj := a.lookup("QueueSubmit", sem, KindSemaphore); obj != nil {
			if !obj.signaled {
				a.violate("QueueSubmit: wait on semaphore %v that nothing signals", sem)
			}
			obj.signaled = false
		}
	}
	for _, sem := range submit.SignalSemaphores {
		if obj := a.lookup("QueueSubmit", sem, KindSemaphore); obj != nil {
			if obj.signaled {
				a.violate("QueueSubmit: semaphore %v is already signaled", sem)
			}
			obj.signaled = true
		}
	}
	if submit.Fence != native.Null {
		if obj := a.lookup("QueueSubmit", submit.Fence, KindFence); obj != nil {
			if obj.signaled {
				a.violate("QueueSubmit: fence %v is already signaled", submit.Fence)
			}
			obj.signaled = true
		}
	}
	return nil
}

func (a *API) QueuePresent(queue native.Handle, present native.Present) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log("QueuePresent", queue, present)
	a.lookup("QueuePresent", queue, KindQueue)
	sc := a.lookup("QueuePresent", present.Swapchain, KindSwapchain)
	if err := a.failure("QueuePresent"); err != nil {
		return err
	}
	if present.WaitSemaphore != native.Null {
		if obj := a.lookup("QueuePresent", present.WaitSemaphore, KindSemaphore); obj != nil {
			if !obj.signaled {
				a.violate("QueuePresent: wait on semaphore %v that nothing signals", present.WaitSemaphore)
			}
			obj.signaled = false
		}
	}
	if sc == nil {
		return native.ErrSurfaceLost
	}
	if int(present.ImageIndex) >= len(sc.images) {
		a.violate("QueuePresent: image index %d of %d", present.ImageIndex, len(sc.images))
		return native.ErrOutOfDate
	}
	if sc.outOfDate {
		return native.ErrOutOfDate
	}
	return nil
}
