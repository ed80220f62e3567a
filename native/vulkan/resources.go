// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

type image struct {
	dev    vk.Device
	vk     vk.Image
	memory vk.DeviceMemory
	// borrowed images belong to a swapchain.
	borrowed bool
}

type imageView struct {
	dev vk.Device
	vk  vk.ImageView
}

type renderPass struct {
	dev     vk.Device
	vk      vk.RenderPass
	formats []gfx.Format
}

type framebuffer struct {
	dev    vk.Device
	vk     vk.Framebuffer
	extent gfx.Extent2D
}

type pipelineLayout struct {
	dev vk.Device
	vk  vk.PipelineLayout
}

type shaderModule struct {
	dev vk.Device
	vk  vk.ShaderModule
}

type pipeline struct {
	dev vk.Device
	vk  vk.Pipeline
	// layout is set when the pipeline created its own empty layout.
	layout vk.PipelineLayout
	owned  bool
}

// CreateImage implements native.API. The image gets its own device local
// allocation.
func (a *API) CreateImage(info native.ImageInfo) (native.Handle, error) {
	d, err := a.device("CreateImage", info.Device)
	if err != nil {
		return native.Null, err
	}
	depth := info.Extent.Depth
	if depth == 0 {
		depth = 1
	}
	imageType := vk.ImageType2d
	if depth > 1 {
		imageType = vk.ImageType3d
	}
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Format:    vk.Format(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  depth,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var img vk.Image
	if err := check("vk.CreateImage()", vk.CreateImage(d.vk, &ici, nil, &img)); err != nil {
		return native.Null, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.vk, img, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType, err := memoryTypeIndex(d.gpu, memoryRequirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.vk, img, nil)
		return native.Null, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if err := check("vk.AllocateMemory()", vk.AllocateMemory(d.vk, &mai, nil, &memory)); err != nil {
		vk.DestroyImage(d.vk, img, nil)
		return native.Null, err
	}
	if err := check("vk.BindImageMemory()", vk.BindImageMemory(d.vk, img, memory, 0)); err != nil {
		vk.DestroyImage(d.vk, img, nil)
		vk.FreeMemory(d.vk, memory, nil)
		return native.Null, err
	}
	return a.put(&image{dev: d.vk, vk: img, memory: memory}), nil
}

func memoryTypeIndex(gpu vk.PhysicalDevice, typeBits uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memoryProperties)
	memoryProperties.Deref()

	for idx := uint32(0); idx < memoryProperties.MemoryTypeCount; idx++ {
		if (typeBits & 1) == 1 {
			memoryProperties.MemoryTypes[idx].Deref()
			if (memoryProperties.MemoryTypes[idx].PropertyFlags & properties) == properties {
				return idx, nil
			}
		}
		typeBits >>= 1
	}
	return 0, errors.Wrap(native.ErrOutOfDeviceMemory, "requested memory type not found")
}

// DestroyImage implements native.API.
func (a *API) DestroyImage(h native.Handle) {
	img, ok := a.take(h).(*image)
	if !ok || img.borrowed {
		return
	}
	vk.DestroyImage(img.dev, img.vk, nil)
	vk.FreeMemory(img.dev, img.memory, nil)
}

// CreateImageView implements native.API.
func (a *API) CreateImageView(info native.ImageViewInfo) (native.Handle, error) {
	d, err := a.device("CreateImageView", info.Device)
	if err != nil {
		return native.Null, err
	}
	img, ok := a.get(info.Image).(*image)
	if !ok {
		return native.Null, a.unknown("CreateImageView", info.Image)
	}
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.vk,
		ViewType: vk.ImageViewType(info.ViewType),
		Format:   vk.Format(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(info.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := check("vk.CreateImageView()", vk.CreateImageView(d.vk, &ivci, nil, &view)); err != nil {
		return native.Null, err
	}
	return a.put(&imageView{dev: d.vk, vk: view}), nil
}

// DestroyImageView implements native.API.
func (a *API) DestroyImageView(h native.Handle) {
	if v, ok := a.take(h).(*imageView); ok {
		vk.DestroyImageView(v.dev, v.vk, nil)
	}
}

// CreateRenderPass implements native.API.
func (a *API) CreateRenderPass(info native.RenderPassInfo) (native.Handle, error) {
	d, err := a.device("CreateRenderPass", info.Device)
	if err != nil {
		return native.Null, err
	}

	attachments := make([]vk.AttachmentDescription, len(info.Attachments))
	formats := make([]gfx.Format, len(info.Attachments))
	for i, desc := range info.Attachments {
		attachments[i] = attachmentDescription(desc)
		formats[i] = desc.Format
	}

	subpasses := make([]vk.SubpassDescription, len(info.Subpasses))
	for i, sp := range info.Subpasses {
		colorAttachmentRef := attachmentReferences(sp.ColorAttachments)
		subpasses[i] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(colorAttachmentRef)),
			PColorAttachments:    colorAttachmentRef,
		}
		if sp.HasDepthStencil {
			subpasses[i].PDepthStencilAttachment = &attachmentReferences([]native.AttachmentReference{sp.DepthStencil})[0]
		}
	}

	dependencies := make([]vk.SubpassDependency, len(info.Dependencies))
	for i, dep := range info.Dependencies {
		dependencies[i] = subpassDependency(dep)
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var rp vk.RenderPass
	if err := check("vk.CreateRenderPass()", vk.CreateRenderPass(d.vk, &rpci, nil, &rp)); err != nil {
		return native.Null, err
	}
	return a.put(&renderPass{dev: d.vk, vk: rp, formats: formats}), nil
}

// DestroyRenderPass implements native.API.
func (a *API) DestroyRenderPass(h native.Handle) {
	if rp, ok := a.take(h).(*renderPass); ok {
		vk.DestroyRenderPass(rp.dev, rp.vk, nil)
	}
}

// CreateFramebuffer implements native.API.
func (a *API) CreateFramebuffer(info native.FramebufferInfo) (native.Handle, error) {
	d, err := a.device("CreateFramebuffer", info.Device)
	if err != nil {
		return native.Null, err
	}
	rp, ok := a.get(info.RenderPass).(*renderPass)
	if !ok {
		return native.Null, a.unknown("CreateFramebuffer", info.RenderPass)
	}
	attachments := make([]vk.ImageView, len(info.Attachments))
	for i, h := range info.Attachments {
		v, ok := a.get(h).(*imageView)
		if !ok {
			return native.Null, a.unknown("CreateFramebuffer", h)
		}
		attachments[i] = v.vk
	}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.vk,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := check("vk.CreateFramebuffer()", vk.CreateFramebuffer(d.vk, &fci, nil, &fb)); err != nil {
		return native.Null, err
	}
	return a.put(&framebuffer{dev: d.vk, vk: fb, extent: info.Extent}), nil
}

// DestroyFramebuffer implements native.API.
func (a *API) DestroyFramebuffer(h native.Handle) {
	if fb, ok := a.take(h).(*framebuffer); ok {
		vk.DestroyFramebuffer(fb.dev, fb.vk, nil)
	}
}

// FramebufferExtent implements native.API.
func (a *API) FramebufferExtent(h native.Handle) gfx.Extent2D {
	if fb, ok := a.get(h).(*framebuffer); ok {
		return fb.extent
	}
	return gfx.Extent2D{}
}

// CreatePipelineLayout implements native.API.
func (a *API) CreatePipelineLayout(info native.PipelineLayoutInfo) (native.Handle, error) {
	d, err := a.device("CreatePipelineLayout", info.Device)
	if err != nil {
		return native.Null, err
	}
	layout, err := emptyPipelineLayout(d.vk)
	if err != nil {
		return native.Null, err
	}
	return a.put(&pipelineLayout{dev: d.vk, vk: layout}), nil
}

func emptyPipelineLayout(dev vk.Device) (vk.PipelineLayout, error) {
	plci := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	var layout vk.PipelineLayout
	if err := check("vk.CreatePipelineLayout()", vk.CreatePipelineLayout(dev, &plci, nil, &layout)); err != nil {
		return layout, err
	}
	return layout, nil
}

// DestroyPipelineLayout implements native.API.
func (a *API) DestroyPipelineLayout(h native.Handle) {
	if pl, ok := a.take(h).(*pipelineLayout); ok {
		vk.DestroyPipelineLayout(pl.dev, pl.vk, nil)
	}
}

// CreateShaderModule implements native.API.
func (a *API) CreateShaderModule(info native.ShaderModuleInfo) (native.Handle, error) {
	d, err := a.device("CreateShaderModule", info.Device)
	if err != nil {
		return native.Null, err
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(info.Code) * 4),
		PCode:    info.Code,
	}
	var module vk.ShaderModule
	if err := check("vk.CreateShaderModule()", vk.CreateShaderModule(d.vk, &smci, nil, &module)); err != nil {
		return native.Null, err
	}
	return a.put(&shaderModule{dev: d.vk, vk: module}), nil
}

// DestroyShaderModule implements native.API.
func (a *API) DestroyShaderModule(h native.Handle) {
	if sm, ok := a.take(h).(*shaderModule); ok {
		vk.DestroyShaderModule(sm.dev, sm.vk, nil)
	}
}

// CreateGraphicsPipeline implements native.API. Pipelines without a layout
// get an empty one that is destroyed with them.
func (a *API) CreateGraphicsPipeline(info native.GraphicsPipelineInfo) (native.Handle, error) {
	d, err := a.device("CreateGraphicsPipeline", info.Device)
	if err != nil {
		return native.Null, err
	}
	rp, ok := a.get(info.RenderPass).(*renderPass)
	if !ok {
		return native.Null, a.unknown("CreateGraphicsPipeline", info.RenderPass)
	}

	pipelineShaderStagesInfo := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for idx, stage := range info.Stages {
		sm, ok := a.get(stage.Module).(*shaderModule)
		if !ok {
			return native.Null, a.unknown("CreateGraphicsPipeline", stage.Module)
		}
		entry := stage.Entry
		if entry == "" {
			entry = "main"
		}
		pipelineShaderStagesInfo[idx] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(stage.Stage),
			Module: sm.vk,
			PName:  safeString(entry),
		}
	}

	p := &pipeline{dev: d.vk}
	if info.WithLayout {
		pl, ok := a.get(info.Layout).(*pipelineLayout)
		if !ok {
			return native.Null, a.unknown("CreateGraphicsPipeline", info.Layout)
		}
		p.layout = pl.vk
	} else {
		if p.layout, err = emptyPipelineLayout(d.vk); err != nil {
			return native.Null, err
		}
		p.owned = true
	}

	viewportState := &vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	var dynamicStates []vk.DynamicState
	if info.WithViewport {
		viewportState.PViewports = []vk.Viewport{viewport(gfx.FullViewport(info.Viewport))}
	} else {
		dynamicStates = append(dynamicStates, vk.DynamicStateViewport)
	}
	if info.WithScissor {
		viewportState.PScissors = []vk.Rect2D{rect2D(gfx.FullRect(info.Scissor))}
	} else {
		dynamicStates = append(dynamicStates, vk.DynamicStateScissor)
	}
	var dynamicState *vk.PipelineDynamicStateCreateInfo
	if len(dynamicStates) > 0 {
		dynamicState = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		}
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, info.ColorAttachments)
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: 0xF,
			BlendEnable:    vk.False,
		}
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(pipelineShaderStagesInfo)),
		PStages:    pipelineShaderStagesInfo,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopology(info.Topology),
		},
		PViewportState: viewportState,
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  boolToVk(hasDepth(rp.formats)),
			DepthWriteEnable: boolToVk(hasDepth(rp.formats)),
			DepthCompareOp:   vk.CompareOpLessOrEqual,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blendAttachments)),
			PAttachments:    blendAttachments,
		},
		PDynamicState: dynamicState,
		Layout:        p.layout,
		RenderPass:    rp.vk,
	}}

	var cache vk.PipelineCache
	pipelines := make([]vk.Pipeline, len(gpci))
	if err := check("vk.CreateGraphicsPipelines()", vk.CreateGraphicsPipelines(d.vk, cache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		if p.owned {
			vk.DestroyPipelineLayout(d.vk, p.layout, nil)
		}
		return native.Null, err
	}
	p.vk = pipelines[0]
	return a.put(p), nil
}

func hasDepth(formats []gfx.Format) bool {
	for _, f := range formats {
		if f.IsDepth() {
			return true
		}
	}
	return false
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// DestroyPipeline implements native.API.
func (a *API) DestroyPipeline(h native.Handle) {
	p, ok := a.take(h).(*pipeline)
	if !ok {
		return
	}
	vk.DestroyPipeline(p.dev, p.vk, nil)
	if p.owned {
		vk.DestroyPipelineLayout(p.dev, p.layout, nil)
	}
}
