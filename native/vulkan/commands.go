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

type commandPool struct {
	dev vk.Device
	vk  vk.CommandPool
}

type commandBuffer struct {
	vk vk.CommandBuffer
}

type syncFence struct {
	dev vk.Device
	vk  vk.Fence
}

type syncSemaphore struct {
	dev vk.Device
	vk  vk.Semaphore
}

// CreateCommandPool implements native.API.
func (a *API) CreateCommandPool(info native.CommandPoolInfo) (native.Handle, error) {
	d, err := a.device("CreateCommandPool", info.Device)
	if err != nil {
		return native.Null, err
	}
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(info.QueueFamily),
	}
	if info.Resettable {
		cpci.Flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	}
	var pool vk.CommandPool
	if err := check("vk.CreateCommandPool()", vk.CreateCommandPool(d.vk, &cpci, nil, &pool)); err != nil {
		return native.Null, err
	}
	return a.put(&commandPool{dev: d.vk, vk: pool}), nil
}

// DestroyCommandPool implements native.API.
func (a *API) DestroyCommandPool(h native.Handle) {
	if p, ok := a.take(h).(*commandPool); ok {
		vk.DestroyCommandPool(p.dev, p.vk, nil)
	}
}

func (a *API) commandPool(op string, h native.Handle) (*commandPool, error) {
	p, ok := a.get(h).(*commandPool)
	if !ok {
		return nil, a.unknown(op, h)
	}
	return p, nil
}

// ResetCommandPool implements native.API.
func (a *API) ResetCommandPool(h native.Handle) error {
	p, err := a.commandPool("ResetCommandPool", h)
	if err != nil {
		return err
	}
	return check("vk.ResetCommandPool()", vk.ResetCommandPool(p.dev, p.vk, 0))
}

// AllocateCommandBuffers implements native.API.
func (a *API) AllocateCommandBuffers(h native.Handle, count int) ([]native.Handle, error) {
	p, err := a.commandPool("AllocateCommandBuffers", h)
	if err != nil {
		return nil, err
	}
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.vk,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	commandBuffers := make([]vk.CommandBuffer, count)
	if err := check("vk.AllocateCommandBuffers()", vk.AllocateCommandBuffers(p.dev, &cbai, commandBuffers)); err != nil {
		return nil, err
	}
	handles := make([]native.Handle, count)
	for i, cb := range commandBuffers {
		handles[i] = a.put(&commandBuffer{vk: cb})
	}
	return handles, nil
}

// FreeCommandBuffers implements native.API.
func (a *API) FreeCommandBuffers(h native.Handle, buffers []native.Handle) {
	p, err := a.commandPool("FreeCommandBuffers", h)
	if err != nil {
		a.log.WithError(err).Warn("free of command buffers")
		return
	}
	commandBuffers := make([]vk.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		if cb, ok := a.take(b).(*commandBuffer); ok {
			commandBuffers = append(commandBuffers, cb.vk)
		}
	}
	if len(commandBuffers) > 0 {
		vk.FreeCommandBuffers(p.dev, p.vk, uint32(len(commandBuffers)), commandBuffers)
	}
}

func (a *API) commandBuffer(h native.Handle) vk.CommandBuffer {
	if cb, ok := a.get(h).(*commandBuffer); ok {
		return cb.vk
	}
	a.log.WithField("handle", h).Error("command on unknown command buffer")
	return nil
}

// BeginCommandBuffer implements native.API.
func (a *API) BeginCommandBuffer(h native.Handle) error {
	cb, ok := a.get(h).(*commandBuffer)
	if !ok {
		return a.unknown("BeginCommandBuffer", h)
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	return check("vk.BeginCommandBuffer()", vk.BeginCommandBuffer(cb.vk, &cbbi))
}

// EndCommandBuffer implements native.API.
func (a *API) EndCommandBuffer(h native.Handle) error {
	cb, ok := a.get(h).(*commandBuffer)
	if !ok {
		return a.unknown("EndCommandBuffer", h)
	}
	return check("vk.EndCommandBuffer()", vk.EndCommandBuffer(cb.vk))
}

// CmdBeginRenderPass implements native.API.
func (a *API) CmdBeginRenderPass(h native.Handle, begin native.RenderPassBegin) {
	rp, ok := a.get(begin.RenderPass).(*renderPass)
	if !ok {
		a.log.WithField("handle", begin.RenderPass).Error("begin of unknown render pass")
		return
	}
	fb, ok := a.get(begin.Framebuffer).(*framebuffer)
	if !ok {
		a.log.WithField("handle", begin.Framebuffer).Error("begin with unknown framebuffer")
		return
	}
	clear := clearValues(rp.formats, begin.ClearValues)
	rpbi := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp.vk,
		Framebuffer:     fb.vk,
		RenderArea:      rect2D(begin.Area),
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}
	vk.CmdBeginRenderPass(a.commandBuffer(h), &rpbi, vk.SubpassContentsInline)
}

// CmdEndRenderPass implements native.API.
func (a *API) CmdEndRenderPass(h native.Handle) {
	vk.CmdEndRenderPass(a.commandBuffer(h))
}

// CmdBindGraphicsPipeline implements native.API.
func (a *API) CmdBindGraphicsPipeline(h, pipelineHandle native.Handle) {
	p, ok := a.get(pipelineHandle).(*pipeline)
	if !ok {
		a.log.WithField("handle", pipelineHandle).Error("bind of unknown pipeline")
		return
	}
	vk.CmdBindPipeline(a.commandBuffer(h), vk.PipelineBindPointGraphics, p.vk)
}

// CmdSetViewport implements native.API.
func (a *API) CmdSetViewport(h native.Handle, v gfx.Viewport) {
	vk.CmdSetViewport(a.commandBuffer(h), 0, 1, []vk.Viewport{viewport(v)})
}

// CmdSetScissor implements native.API.
func (a *API) CmdSetScissor(h native.Handle, scissor gfx.Rect2D) {
	vk.CmdSetScissor(a.commandBuffer(h), 0, 1, []vk.Rect2D{rect2D(scissor)})
}

// CmdDraw implements native.API.
func (a *API) CmdDraw(h native.Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(a.commandBuffer(h), vertexCount, instanceCount, firstVertex, firstInstance)
}

// CreateFence implements native.API.
func (a *API) CreateFence(h native.Handle, signaled bool) (native.Handle, error) {
	d, err := a.device("CreateFence", h)
	if err != nil {
		return native.Null, err
	}
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	if err := check("vk.CreateFence()", vk.CreateFence(d.vk, &fci, nil, &f)); err != nil {
		return native.Null, err
	}
	return a.put(&syncFence{dev: d.vk, vk: f}), nil
}

// DestroyFence implements native.API.
func (a *API) DestroyFence(h native.Handle) {
	if f, ok := a.take(h).(*syncFence); ok {
		vk.DestroyFence(f.dev, f.vk, nil)
	}
}

// WaitFence implements native.API.
func (a *API) WaitFence(h native.Handle) error {
	f, ok := a.get(h).(*syncFence)
	if !ok {
		return a.unknown("WaitFence", h)
	}
	return check("vk.WaitForFences()", vk.WaitForFences(f.dev, 1, []vk.Fence{f.vk}, vk.True, math.MaxUint64))
}

// ResetFence implements native.API.
func (a *API) ResetFence(h native.Handle) error {
	f, ok := a.get(h).(*syncFence)
	if !ok {
		return a.unknown("ResetFence", h)
	}
	return check("vk.ResetFences()", vk.ResetFences(f.dev, 1, []vk.Fence{f.vk}))
}

// CreateSemaphore implements native.API.
func (a *API) CreateSemaphore(h native.Handle) (native.Handle, error) {
	d, err := a.device("CreateSemaphore", h)
	if err != nil {
		return native.Null, err
	}
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var s vk.Semaphore
	if err := check("vk.CreateSemaphore()", vk.CreateSemaphore(d.vk, &sci, nil, &s)); err != nil {
		return native.Null, err
	}
	return a.put(&syncSemaphore{dev: d.vk, vk: s}), nil
}

// DestroySemaphore implements native.API.
func (a *API) DestroySemaphore(h native.Handle) {
	if s, ok := a.take(h).(*syncSemaphore); ok {
		vk.DestroySemaphore(s.dev, s.vk, nil)
	}
}

func (a *API) semaphores(op string, handles []native.Handle) ([]vk.Semaphore, error) {
	out := make([]vk.Semaphore, len(handles))
	for i, h := range handles {
		s, ok := a.get(h).(*syncSemaphore)
		if !ok {
			return nil, a.unknown(op, h)
		}
		out[i] = s.vk
	}
	return out, nil
}

// QueueSubmit implements native.API.
func (a *API) QueueSubmit(h native.Handle, submit native.Submit) error {
	q, ok := a.get(h).(*queue)
	if !ok {
		return a.unknown("QueueSubmit", h)
	}
	commandBuffers := make([]vk.CommandBuffer, len(submit.CommandBuffers))
	for i, b := range submit.CommandBuffers {
		cb, ok := a.get(b).(*commandBuffer)
		if !ok {
			return a.unknown("QueueSubmit", b)
		}
		commandBuffers[i] = cb.vk
	}
	waits, err := a.semaphores("QueueSubmit", submit.WaitSemaphores)
	if err != nil {
		return err
	}
	signals, err := a.semaphores("QueueSubmit", submit.SignalSemaphores)
	if err != nil {
		return err
	}
	var fence vk.Fence
	if submit.Fence != native.Null {
		f, ok := a.get(submit.Fence).(*syncFence)
		if !ok {
			return a.unknown("QueueSubmit", submit.Fence)
		}
		fence = f.vk
	}

	info := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    pipelineStages(submit.WaitStages),
		CommandBufferCount:   uint32(len(commandBuffers)),
		PCommandBuffers:      commandBuffers,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}}
	return check("vk.QueueSubmit()", vk.QueueSubmit(q.vk, 1, info, fence))
}

// QueuePresent implements native.API.
func (a *API) QueuePresent(h native.Handle, present native.Present) error {
	q, ok := a.get(h).(*queue)
	if !ok {
		return a.unknown("QueuePresent", h)
	}
	sc, err := a.swapchain("QueuePresent", present.Swapchain)
	if err != nil {
		return err
	}
	var waits []vk.Semaphore
	if present.WaitSemaphore != native.Null {
		if waits, err = a.semaphores("QueuePresent", []native.Handle{present.WaitSemaphore}); err != nil {
			return err
		}
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.vk},
		PImageIndices:      []uint32{present.ImageIndex},
	}
	return check("vk.QueuePresent()", vk.QueuePresent(q.vk, &presentInfo))
}
