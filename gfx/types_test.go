// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vksafe/gfx"
)

func TestShaderStageFromName(t *testing.T) {
	c := qt.New(t)
	for name, want := range map[string]gfx.ShaderStage{
		"triangle.vert.spv": gfx.ShaderStageVertex,
		"triangle.frag.spv": gfx.ShaderStageFragment,
		"shaders/a.geom":    gfx.ShaderStageGeometry,
		"particles.comp":    gfx.ShaderStageCompute,
	} {
		got, ok := gfx.ShaderStageFromName(name)
		c.Assert(ok, qt.IsTrue, qt.Commentf("%s", name))
		c.Assert(got, qt.Equals, want, qt.Commentf("%s", name))
	}

	for _, name := range []string{"triangle.spv", "triangle.tesc.spv", ""} {
		_, ok := gfx.ShaderStageFromName(name)
		c.Assert(ok, qt.IsFalse, qt.Commentf("%s", name))
	}
}

func TestQueueFlags(t *testing.T) {
	c := qt.New(t)
	flags := gfx.QueueGraphics | gfx.QueueTransfer
	c.Assert(flags.Has(gfx.QueueGraphics), qt.IsTrue)
	c.Assert(flags.Has(gfx.QueueGraphics|gfx.QueueTransfer), qt.IsTrue)
	c.Assert(flags.Has(gfx.QueueCompute), qt.IsFalse)
	c.Assert(flags.String(), qt.Equals, "Graphics|Transfer")
	c.Assert(gfx.QueueFlags(0).String(), qt.Equals, "None")
}

func TestFormat(t *testing.T) {
	c := qt.New(t)
	c.Assert(gfx.FormatD32Sfloat.IsDepth(), qt.IsTrue)
	c.Assert(gfx.FormatB8G8R8A8Srgb.IsDepth(), qt.IsFalse)
	c.Assert(gfx.FormatB8G8R8A8Srgb.String(), qt.Equals, "B8G8R8A8Srgb")
	c.Assert(gfx.Format(3).String(), qt.Equals, "Format(3)")
}

func TestFullViewport(t *testing.T) {
	c := qt.New(t)
	e := gfx.Extent2D{Width: 800, Height: 600}
	c.Assert(gfx.FullViewport(e), qt.Equals, gfx.Viewport{Width: 800, Height: 600, MaxDepth: 1})
	c.Assert(gfx.FullRect(e).Extent, qt.Equals, e)
	c.Assert(gfx.Extent2D{Width: 1}.Empty(), qt.IsTrue)
}

func TestDeviceTypeRank(t *testing.T) {
	c := qt.New(t)
	c.Assert(gfx.DeviceTypeDiscreteGPU.Rank() > gfx.DeviceTypeIntegratedGPU.Rank(), qt.IsTrue)
	c.Assert(gfx.DeviceTypeIntegratedGPU.Rank() > gfx.DeviceTypeCPU.Rank(), qt.IsTrue)
	c.Assert(gfx.DeviceTypeOther.String(), qt.Equals, "Other")
}
