// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package native

import "github.com/pkg/errors"

// Errors reported by API implementations.
var (
	ErrOutOfHostMemory      = errors.New("native: out of host memory")
	ErrOutOfDeviceMemory    = errors.New("native: out of device memory")
	ErrDeviceLost           = errors.New("native: device lost")
	ErrInitializationFailed = errors.New("native: initialization failed")
	ErrUnsupported          = errors.New("native: unsupported configuration")
	ErrSurfaceLost          = errors.New("native: surface lost")
	// ErrOutOfDate means a swapchain no longer matches its surface and has
	// to be recreated. Suboptimal swapchains report it as well.
	ErrOutOfDate = errors.New("native: swapchain out of date")
	ErrUnknown   = errors.New("native: unknown error")
)
