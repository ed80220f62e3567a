// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"fmt"
	"strings"
)

// Format is a pixel format.
type Format int32

// Supported pixel formats.
const (
	FormatUndefined      Format = 0
	FormatR8G8B8A8Unorm  Format = 37
	FormatR8G8B8A8Srgb   Format = 43
	FormatB8G8R8A8Unorm  Format = 44
	FormatB8G8R8A8Srgb   Format = 50
	FormatD16Unorm       Format = 124
	FormatD32Sfloat      Format = 126
	FormatD24UnormS8Uint Format = 129
)

var formatNames = map[Format]string{
	FormatUndefined:      "Undefined",
	FormatR8G8B8A8Unorm:  "R8G8B8A8Unorm",
	FormatR8G8B8A8Srgb:   "R8G8B8A8Srgb",
	FormatB8G8R8A8Unorm:  "B8G8R8A8Unorm",
	FormatB8G8R8A8Srgb:   "B8G8R8A8Srgb",
	FormatD16Unorm:       "D16Unorm",
	FormatD32Sfloat:      "D32Sfloat",
	FormatD24UnormS8Uint: "D24UnormS8Uint",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

// IsDepth reports whether f carries a depth component.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat, FormatD24UnormS8Uint:
		return true
	}
	return false
}

// ImageLayout is the memory layout an image is in for a given use.
type ImageLayout int32

// Image layouts.
const (
	LayoutUndefined                     ImageLayout = 0
	LayoutGeneral                       ImageLayout = 1
	LayoutColorAttachmentOptimal        ImageLayout = 2
	LayoutDepthStencilAttachmentOptimal ImageLayout = 3
	LayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	LayoutShaderReadOnlyOptimal         ImageLayout = 5
	LayoutTransferSrcOptimal            ImageLayout = 6
	LayoutTransferDstOptimal            ImageLayout = 7
	LayoutPresentSrc                    ImageLayout = 1000001002
	LayoutAttachmentOptimal             ImageLayout = 1000314001
)

var layoutNames = map[ImageLayout]string{
	LayoutUndefined:                     "Undefined",
	LayoutGeneral:                       "General",
	LayoutColorAttachmentOptimal:        "ColorAttachmentOptimal",
	LayoutDepthStencilAttachmentOptimal: "DepthStencilAttachmentOptimal",
	LayoutDepthStencilReadOnlyOptimal:   "DepthStencilReadOnlyOptimal",
	LayoutShaderReadOnlyOptimal:         "ShaderReadOnlyOptimal",
	LayoutTransferSrcOptimal:            "TransferSrcOptimal",
	LayoutTransferDstOptimal:            "TransferDstOptimal",
	LayoutPresentSrc:                    "PresentSrc",
	LayoutAttachmentOptimal:             "AttachmentOptimal",
}

func (l ImageLayout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return fmt.Sprintf("ImageLayout(%d)", int32(l))
}

// QueueFlags is a set of queue capabilities.
type QueueFlags uint32

// Queue capabilities.
const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

// Has reports whether every flag in want is set in q.
func (q QueueFlags) Has(want QueueFlags) bool {
	return q&want == want
}

func (q QueueFlags) String() string {
	if q == 0 {
		return "None"
	}
	var parts []string
	for _, f := range []struct {
		flag QueueFlags
		name string
	}{
		{QueueGraphics, "Graphics"},
		{QueueCompute, "Compute"},
		{QueueTransfer, "Transfer"},
	} {
		if q&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// PipelineStage is a set of pipeline stages, used to mark where a wait
// semaphore blocks execution.
type PipelineStage uint32

// Pipeline stages.
const (
	StageTopOfPipe             PipelineStage = 0x00000001
	StageDrawIndirect          PipelineStage = 0x00000002
	StageVertexInput           PipelineStage = 0x00000004
	StageVertexShader          PipelineStage = 0x00000008
	StageFragmentShader        PipelineStage = 0x00000080
	StageEarlyFragmentTests    PipelineStage = 0x00000100
	StageLateFragmentTests     PipelineStage = 0x00000200
	StageColorAttachmentOutput PipelineStage = 0x00000400
	StageComputeShader         PipelineStage = 0x00000800
	StageTransfer              PipelineStage = 0x00001000
	StageBottomOfPipe          PipelineStage = 0x00002000
	StageAllGraphics           PipelineStage = 0x00008000
	StageAllCommands           PipelineStage = 0x00010000
)

// ShaderStage identifies the programmable stage a shader module runs in.
type ShaderStage uint32

// Shader stages.
const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageGeometry ShaderStage = 0x00000008
	ShaderStageFragment ShaderStage = 0x00000010
	ShaderStageCompute  ShaderStage = 0x00000020
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "Vertex"
	case ShaderStageGeometry:
		return "Geometry"
	case ShaderStageFragment:
		return "Fragment"
	case ShaderStageCompute:
		return "Compute"
	}
	return fmt.Sprintf("ShaderStage(%d)", uint32(s))
}

// ShaderStageFromName returns the stage encoded in a shader file name of
// the form name.stage.spv, where stage is vert, geom, frag or comp.
func ShaderStageFromName(name string) (ShaderStage, bool) {
	nodes := strings.Split(strings.TrimSuffix(name, ".spv"), ".")
	if len(nodes) < 2 {
		return 0, false
	}
	switch nodes[len(nodes)-1] {
	case "vert":
		return ShaderStageVertex, true
	case "geom":
		return ShaderStageGeometry, true
	case "frag":
		return ShaderStageFragment, true
	case "comp":
		return ShaderStageCompute, true
	}
	return 0, false
}

// ImageViewType is the dimensionality of an image view.
type ImageViewType int32

// Image view types.
const (
	ViewType1D ImageViewType = iota
	ViewType2D
	ViewType3D
	ViewTypeCube
	ViewType1DArray
	ViewType2DArray
)

// ImageAspect selects color, depth or stencil data of an image.
type ImageAspect uint32

// Image aspects.
const (
	AspectColor   ImageAspect = 0x1
	AspectDepth   ImageAspect = 0x2
	AspectStencil ImageAspect = 0x4
)

// ImageUsage is a set of ways an image may be used.
type ImageUsage uint32

// Image usages.
const (
	UsageTransferSrc            ImageUsage = 0x01
	UsageTransferDst            ImageUsage = 0x02
	UsageSampled                ImageUsage = 0x04
	UsageStorage                ImageUsage = 0x08
	UsageColorAttachment        ImageUsage = 0x10
	UsageDepthStencilAttachment ImageUsage = 0x20
)

// PresentMode selects how a swapchain queues images for display.
type PresentMode int32

// Present modes.
const (
	PresentImmediate PresentMode = iota
	PresentMailbox
	PresentFifo
	PresentFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentImmediate:
		return "Immediate"
	case PresentMailbox:
		return "Mailbox"
	case PresentFifo:
		return "Fifo"
	case PresentFifoRelaxed:
		return "FifoRelaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int32(m))
}

// LoadOp is what happens to an attachment's contents at the start of a
// render pass.
type LoadOp int32

// Load operations.
const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

// StoreOp is what happens to an attachment's contents at the end of a
// render pass.
type StoreOp int32

// Store operations.
const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// PrimitiveTopology is how vertices are assembled into primitives.
type PrimitiveTopology int32

// Primitive topologies.
const (
	TopologyPointList PrimitiveTopology = iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyTriangleFan
)

// DeviceType classifies a physical device.
type DeviceType int32

// Physical device types.
const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "IntegratedGPU"
	case DeviceTypeDiscreteGPU:
		return "DiscreteGPU"
	case DeviceTypeVirtualGPU:
		return "VirtualGPU"
	case DeviceTypeCPU:
		return "CPU"
	}
	return "Other"
}

// Rank orders device types by preference, higher is better.
func (t DeviceType) Rank() int {
	switch t {
	case DeviceTypeDiscreteGPU:
		return 4
	case DeviceTypeIntegratedGPU:
		return 3
	case DeviceTypeVirtualGPU:
		return 2
	case DeviceTypeCPU:
		return 1
	}
	return 0
}
