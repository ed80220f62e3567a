// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vulkan implements native.API on top of the Vulkan loader.
//
// Vulkan handles are pointers owned by the driver. The backend keeps them
// in a table and hands out plain numbers instead, together with whatever
// parent objects each destroy call needs later.
package vulkan

import (
	"strings"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/vksafe/native"
)

// EngineName is reported to the driver in the application info.
const EngineName = "vksafe"

var initOnce struct {
	sync.Once
	err error
}

// API talks to a Vulkan driver.
type API struct {
	log logrus.FieldLogger

	mutex   sync.Mutex
	next    native.Handle
	objects map[native.Handle]interface{}
}

var _ native.API = (*API)(nil)

// New loads the Vulkan entry points. procAddr is a vkGetInstanceProcAddr
// obtained from a windowing library, or nil to use the system loader.
func New(procAddr unsafe.Pointer, log logrus.FieldLogger) (*API, error) {
	initOnce.Do(func() {
		if procAddr == nil {
			if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
				initOnce.err = errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
				return
			}
		} else {
			vk.SetGetInstanceProcAddr(procAddr)
		}
		if err := vk.Init(); err != nil {
			initOnce.err = errors.Wrap(err, "vk.Init()")
		}
	})
	if initOnce.err != nil {
		return nil, initOnce.err
	}
	return &API{
		log:     log,
		objects: make(map[native.Handle]interface{}),
	}, nil
}

func (a *API) put(obj interface{}) native.Handle {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.next++
	a.objects[a.next] = obj
	return a.next
}

func (a *API) get(h native.Handle) interface{} {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.objects[h]
}

// take removes h from the table and returns what it referred to.
func (a *API) take(h native.Handle) interface{} {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	obj, ok := a.objects[h]
	if !ok {
		a.log.WithField("handle", h).Warn("destroy of unknown handle")
		return nil
	}
	delete(a.objects, h)
	return obj
}

func (a *API) unknown(op string, h native.Handle) error {
	return errors.Wrapf(native.ErrUnknown, "%s: unknown handle %v", op, h)
}

// check converts a Vulkan result into one of the native errors.
func check(op string, result vk.Result) error {
	if result == vk.Success {
		return nil
	}
	var sentinel error
	switch result {
	case vk.ErrorOutOfHostMemory:
		sentinel = native.ErrOutOfHostMemory
	case vk.ErrorOutOfDeviceMemory:
		sentinel = native.ErrOutOfDeviceMemory
	case vk.ErrorDeviceLost:
		sentinel = native.ErrDeviceLost
	case vk.ErrorInitializationFailed, vk.ErrorIncompatibleDriver:
		sentinel = native.ErrInitializationFailed
	case vk.ErrorExtensionNotPresent, vk.ErrorLayerNotPresent,
		vk.ErrorFeatureNotPresent, vk.ErrorFormatNotSupported:
		sentinel = native.ErrUnsupported
	case vk.ErrorSurfaceLost:
		sentinel = native.ErrSurfaceLost
	case vk.ErrorOutOfDate, vk.Suboptimal:
		sentinel = native.ErrOutOfDate
	default:
		sentinel = native.ErrUnknown
	}
	return errors.Wrapf(sentinel, "%s: VkResult %d", op, int32(result))
}

// safeStrings terminates every string with a NUL, as the bindings pass
// them to C unchanged.
func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}
