// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package window provides an SDL2 window that Vulkan can present to.
package window

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

// Init starts SDL video and loads the Vulkan loader. The returned function
// shuts both down again. Must be called from the main thread.
func Init() (func(), error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "sdl init")
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "load vulkan library")
	}
	return func() {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
	}, nil
}

// ProcAddr returns vkGetInstanceProcAddr of the loader SDL opened.
func ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// SDL is a resizable SDL window with Vulkan support.
type SDL struct {
	window *sdl.Window
	log    logrus.FieldLogger
	closed bool
}

// New opens a window with the given drawable size.
func New(title string, width, height uint32, log logrus.FieldLogger) (*SDL, error) {
	w, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(width),
		int32(height),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	return &SDL{window: w, log: log}, nil
}

// RequiredExtensions lists the instance extensions SDL needs for surfaces.
func (w *SDL) RequiredExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// NewSurface creates a VkSurfaceKHR for instance, which must be a
// vk.Instance.
func (w *SDL) NewSurface(instance interface{}) (uintptr, error) {
	srf, err := w.window.VulkanCreateSurface(instance)
	if err != nil {
		return 0, errors.Wrap(err, "create surface")
	}
	return uintptr(srf), nil
}

// Update drains the event queue.
func (w *SDL) Update() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if closes(event) {
			w.closed = true
		}
		if we, ok := event.(*sdl.WindowEvent); ok && we.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			w.log.WithFields(logrus.Fields{"width": we.Data1, "height": we.Data2}).Debug("window resized")
		}
	}
}

// CloseRequested reports whether the window was closed or escape pressed.
func (w *SDL) CloseRequested() bool {
	return w.closed
}

// Size returns the drawable size in pixels.
func (w *SDL) Size() (uint32, uint32) {
	width, height := w.window.VulkanGetDrawableSize()
	return uint32(width), uint32(height)
}

// Destroy closes the window. Surfaces created for it must be destroyed
// first.
func (w *SDL) Destroy() error {
	return w.window.Destroy()
}

func closes(event sdl.Event) bool {
	switch et := event.(type) {
	case *sdl.KeyboardEvent:
		return et.Keysym.Sym == sdl.K_ESCAPE && et.State == sdl.PRESSED
	case *sdl.QuitEvent:
		return true
	case *sdl.WindowEvent:
		return et.Event == sdl.WINDOWEVENT_CLOSE
	}
	return false
}
