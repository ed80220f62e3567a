// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

// The gfx enums carry Vulkan's numeric values, so most conversions are
// plain type conversions.

func extent2D(e gfx.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func rect2D(r gfx.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: extent2D(r.Extent),
	}
}

func viewport(v gfx.Viewport) vk.Viewport {
	return vk.Viewport{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}
}

func queueFlags(f vk.QueueFlags) gfx.QueueFlags {
	mask := vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit)
	return gfx.QueueFlags(f & mask)
}

func deviceType(t vk.PhysicalDeviceType) gfx.DeviceType {
	return gfx.DeviceType(t)
}

func subpassIndex(i int) uint32 {
	if i == native.External {
		return vk.SubpassExternal
	}
	return uint32(i)
}

func attachmentDescription(d native.AttachmentDescription) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         vk.Format(d.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOp(d.LoadOp),
		StoreOp:        vk.AttachmentStoreOp(d.StoreOp),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayout(d.InitialLayout),
		FinalLayout:    vk.ImageLayout(d.FinalLayout),
	}
}

func attachmentReferences(refs []native.AttachmentReference) []vk.AttachmentReference {
	out := make([]vk.AttachmentReference, len(refs))
	for i, r := range refs {
		out[i] = vk.AttachmentReference{
			Attachment: uint32(r.Attachment),
			Layout:     vk.ImageLayout(r.Layout),
		}
	}
	return out
}

func subpassDependency(d native.SubpassDependency) vk.SubpassDependency {
	return vk.SubpassDependency{
		SrcSubpass:    subpassIndex(d.Src),
		DstSubpass:    subpassIndex(d.Dst),
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}
}

func pipelineStages(stages []gfx.PipelineStage) []vk.PipelineStageFlags {
	out := make([]vk.PipelineStageFlags, len(stages))
	for i, s := range stages {
		out[i] = vk.PipelineStageFlags(s)
	}
	return out
}

// clearValues pairs clear colors with attachment formats. Depth
// attachments are cleared to the far plane.
func clearValues(formats []gfx.Format, colors [][4]float32) []vk.ClearValue {
	out := make([]vk.ClearValue, len(colors))
	for i, c := range colors {
		if i < len(formats) && formats[i].IsDepth() {
			out[i].SetDepthStencil(1, 0)
			continue
		}
		out[i].SetColor(c[:])
	}
	return out
}
