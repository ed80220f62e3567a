// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package native

import "github.com/devblok/vksafe/gfx"

// InstanceInfo configures instance creation.
type InstanceInfo struct {
	ApplicationName string
	EngineName      string
	Extensions      []string
	Layers          []string
	Debug           bool
}

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Flags gfx.QueueFlags
	Count int
}

// PhysicalDevice describes a physical device as reported by the driver.
type PhysicalDevice struct {
	Index         int
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Type          gfx.DeviceType
	Memory        uint64
	Extensions    []string
	Layers        []string
	QueueFamilies []QueueFamily
}

// HasExtension reports whether the device advertises the named extension.
func (p PhysicalDevice) HasExtension(name string) bool {
	for _, ext := range p.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// QueueRequest asks for Count queues from a family.
type QueueRequest struct {
	Family int
	Count  int
}

// DeviceInfo configures logical device creation.
type DeviceInfo struct {
	Instance         Handle
	PhysicalDevice   int
	Queues           []QueueRequest
	Extensions       []string
	Synchronization2 bool
}

// SwapchainInfo configures swapchain creation.
type SwapchainInfo struct {
	Device      Handle
	Surface     Handle
	Extent      gfx.Extent2D
	ImageCount  int
	Format      gfx.Format
	PresentMode gfx.PresentMode
	// Old is the swapchain being replaced, or Null.
	Old Handle
}

// ImageInfo configures creation of a standalone image with its own
// device memory.
type ImageInfo struct {
	Device Handle
	Extent gfx.Extent3D
	Format gfx.Format
	Usage  gfx.ImageUsage
}

// ImageViewInfo configures image view creation.
type ImageViewInfo struct {
	Device   Handle
	Image    Handle
	ViewType gfx.ImageViewType
	Format   gfx.Format
	Aspect   gfx.ImageAspect
}

// AttachmentDescription describes one render pass attachment.
type AttachmentDescription struct {
	Format        gfx.Format
	LoadOp        gfx.LoadOp
	StoreOp       gfx.StoreOp
	InitialLayout gfx.ImageLayout
	FinalLayout   gfx.ImageLayout
}

// AttachmentReference points at an attachment by index.
type AttachmentReference struct {
	Attachment int
	Layout     gfx.ImageLayout
}

// SubpassDescription lists the attachments a subpass uses.
type SubpassDescription struct {
	ColorAttachments []AttachmentReference
	// HasDepthStencil tells whether DepthStencil is used.
	HasDepthStencil bool
	DepthStencil    AttachmentReference
}

// External is the subpass index standing for work outside the render pass.
const External = -1

// SubpassDependency orders two subpasses.
type SubpassDependency struct {
	Src, Dst int
}

// RenderPassInfo configures render pass creation.
type RenderPassInfo struct {
	Device       Handle
	Attachments  []AttachmentDescription
	Subpasses    []SubpassDescription
	Dependencies []SubpassDependency
}

// FramebufferInfo configures framebuffer creation.
type FramebufferInfo struct {
	Device      Handle
	RenderPass  Handle
	Attachments []Handle
	Extent      gfx.Extent2D
}

// PipelineLayoutInfo configures pipeline layout creation.
type PipelineLayoutInfo struct {
	Device Handle
}

// ShaderModuleInfo configures shader module creation from SPIR-V words.
type ShaderModuleInfo struct {
	Device Handle
	Code   []uint32
}

// ShaderStageInfo binds a shader module to a stage.
type ShaderStageInfo struct {
	Stage  gfx.ShaderStage
	Module Handle
	Entry  string
}

// GraphicsPipelineInfo configures graphics pipeline creation. Fixed
// viewport and scissor are only used when the matching With flag is set;
// otherwise they are dynamic state.
type GraphicsPipelineInfo struct {
	Device     Handle
	RenderPass Handle
	Stages     []ShaderStageInfo

	WithViewport bool
	Viewport     gfx.Extent2D
	WithScissor  bool
	Scissor      gfx.Extent2D

	// WithLayout tells whether Layout is used.
	WithLayout bool
	Layout     Handle

	ColorAttachments int
	Topology         gfx.PrimitiveTopology
}

// CommandPoolInfo configures command pool creation.
type CommandPoolInfo struct {
	Device      Handle
	QueueFamily int
	Resettable  bool
}

// RenderPassBegin holds the arguments of a render pass begin command.
type RenderPassBegin struct {
	RenderPass  Handle
	Framebuffer Handle
	Area        gfx.Rect2D
	ClearValues [][4]float32
}

// Submit holds the arguments of a queue submission. WaitStages and
// WaitSemaphores are parallel.
type Submit struct {
	CommandBuffers   []Handle
	WaitStages       []gfx.PipelineStage
	WaitSemaphores   []Handle
	SignalSemaphores []Handle
	// Fence is signaled on completion, or Null.
	Fence Handle
}

// Present holds the arguments of a present call.
type Present struct {
	Swapchain     Handle
	ImageIndex    uint32
	WaitSemaphore Handle
}
