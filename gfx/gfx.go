// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the value types shared by the safety layer and the
// native backends: formats, layouts, pipeline stages, queue capabilities and
// the small geometric structs passed along with them.
//
// Numeric values match the Vulkan enumerants so backends can convert
// with a plain type conversion.
package gfx

// Releasable defines any wrapper that holds a native resource which must be
// given back explicitly.
type Releasable interface {

	// Destroy drops the caller's reference to the underlying resource.
	// Calling it more than once has no further effect.
	Destroy()
}

// Extent2D is a width and height in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either dimension is zero.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Extent3D is a width, height and depth in pixels.
type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// Offset2D is a signed pixel offset.
type Offset2D struct {
	X int32
	Y int32
}

// Rect2D is a rectangle in framebuffer coordinates.
type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

// Viewport describes the viewport transform.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// FullViewport returns a viewport covering e with the [0, 1] depth range.
func FullViewport(e Extent2D) Viewport {
	return Viewport{
		Width:    float32(e.Width),
		Height:   float32(e.Height),
		MaxDepth: 1,
	}
}

// FullRect returns a rectangle at the origin covering e.
func FullRect(e Extent2D) Rect2D {
	return Rect2D{Extent: e}
}
