// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

// Device extensions the finder enables on request.
const (
	SwapchainExtension        = "VK_KHR_swapchain"
	Synchronization2Extension = "VK_KHR_synchronization2"
)

// Device is a logical device. Everything except instances and surfaces
// depends on one.
type Device struct {
	resource
	inst    *Instance
	gpu     native.PhysicalDevice
	queues  []*Queue
	present *Queue
}

// DeviceFinder selects a physical device satisfying a set of requirements
// and creates a logical device on it.
type DeviceFinder struct {
	builder
	inst       *Instance
	queues     []gfx.QueueFlags
	surface    *Surface
	extensions []string
	sync2      bool
}

// FindGPU starts a device search on this instance.
func (i *Instance) FindGPU() *DeviceFinder {
	return &DeviceFinder{inst: i}
}

// WithQueue requests one queue supporting every flag in flags. It may be
// called repeatedly; each call asks for one more queue.
func (f *DeviceFinder) WithQueue(flags gfx.QueueFlags) *DeviceFinder {
	f.queues = append(f.queues, flags)
	return f
}

// WithPresentation requires that the device can present to surface.
func (f *DeviceFinder) WithPresentation(surface *Surface) *DeviceFinder {
	f.surface = surface
	return f.WithExtension(SwapchainExtension)
}

func (f *DeviceFinder) WithSynchronization2() *DeviceFinder {
	f.sync2 = true
	return f.WithExtension(Synchronization2Extension)
}

// WithExtension requires and enables a device extension.
func (f *DeviceFinder) WithExtension(name string) *DeviceFinder {
	f.extensions = appendUnique(f.extensions, name)
	return f
}

// queueSlot is a queue assigned on a candidate device.
type queueSlot struct {
	family, index int
	flags         gfx.QueueFlags
}

type candidate struct {
	gpu     native.PhysicalDevice
	slots   []queueSlot
	present int // index into slots, or -1
	counts  map[int]int
}

// Build picks the best suitable device and creates it.
func (f *DeviceFinder) Build() (*Device, error) {
	if err := f.consume("Device"); err != nil {
		return nil, err
	}
	if f.inst == nil {
		return nil, missing("DeviceFinder.Build", "instance")
	}
	deps := []*resource{&f.inst.resource}
	if f.surface != nil {
		deps = append(deps, &f.surface.resource)
	}
	if err := live("DeviceFinder.Build", deps...); err != nil {
		return nil, err
	}
	gpus, err := f.inst.PhysicalDevices()
	if err != nil {
		return nil, creationError("Device", err)
	}

	var best *candidate
	for _, gpu := range gpus {
		c, reason := f.evaluate(gpu)
		if c == nil {
			f.inst.env.log.WithFields(logrus.Fields{
				"device": gpu.Name,
				"reason": reason,
			}).Debug("device rejected")
			continue
		}
		if best == nil || better(c.gpu, best.gpu) {
			best = c
		}
	}
	if best == nil {
		return nil, creationError("Device", ErrNoSuitableDevice)
	}
	return f.create(best)
}

func better(a, b native.PhysicalDevice) bool {
	if a.Type.Rank() != b.Type.Rank() {
		return a.Type.Rank() > b.Type.Rank()
	}
	return a.Memory > b.Memory
}

// evaluate assigns queues on gpu, or returns the reason it cannot serve.
func (f *DeviceFinder) evaluate(gpu native.PhysicalDevice) (*candidate, string) {
	for _, ext := range f.extensions {
		if !gpu.HasExtension(ext) {
			return nil, "missing extension " + ext
		}
	}
	requests := f.queues
	if len(requests) == 0 {
		requests = []gfx.QueueFlags{gfx.QueueGraphics}
	}

	c := &candidate{gpu: gpu, present: -1, counts: make(map[int]int)}
	for _, flags := range requests {
		family := -1
		for i, qf := range gpu.QueueFamilies {
			if qf.Flags.Has(flags) && c.counts[i] < qf.Count {
				family = i
				break
			}
		}
		if family < 0 {
			return nil, "no queue family for " + flags.String()
		}
		c.slots = append(c.slots, queueSlot{family: family, index: c.counts[family], flags: flags})
		c.counts[family]++
	}
	if f.surface == nil {
		return c, ""
	}

	// Present on an already requested queue when possible.
	for i, slot := range c.slots {
		if f.canPresent(gpu, slot.family) {
			c.present = i
			return c, ""
		}
	}
	for i, qf := range gpu.QueueFamilies {
		if c.counts[i] < qf.Count && f.canPresent(gpu, i) {
			c.slots = append(c.slots, queueSlot{family: i, index: c.counts[i], flags: qf.Flags})
			c.counts[i]++
			c.present = len(c.slots) - 1
			return c, ""
		}
	}
	return nil, "no queue family can present to the surface"
}

func (f *DeviceFinder) canPresent(gpu native.PhysicalDevice, family int) bool {
	ok, err := f.inst.env.api.SurfaceSupport(f.inst.handle, gpu.Index, family, f.surface.handle)
	if err != nil {
		f.inst.env.log.WithError(err).WithField("device", gpu.Name).Debug("surface support query failed")
		return false
	}
	return ok
}

func (f *DeviceFinder) create(c *candidate) (*Device, error) {
	info := native.DeviceInfo{
		Instance:         f.inst.handle,
		PhysicalDevice:   c.gpu.Index,
		Extensions:       f.extensions,
		Synchronization2: f.sync2,
	}
	for family := range c.gpu.QueueFamilies {
		if n := c.counts[family]; n > 0 {
			info.Queues = append(info.Queues, native.QueueRequest{Family: family, Count: n})
		}
	}
	api := f.inst.env.api
	h, err := api.CreateDevice(info)
	if err != nil {
		return nil, creationError("Device", err)
	}

	handles := make([]native.Handle, len(c.slots))
	for i, slot := range c.slots {
		if handles[i], err = api.DeviceQueue(h, slot.family, slot.index); err != nil {
			api.DestroyDevice(h)
			return nil, creationError("Device", errors.Wrapf(err, "queue %d of family %d", slot.index, slot.family))
		}
	}

	d := &Device{
		resource: newResource(f.inst.env, "Device", h, api.DestroyDevice, f.inst.node()),
		inst:     f.inst,
		gpu:      c.gpu,
	}
	for i, slot := range c.slots {
		q := &Queue{
			dev:     d,
			handle:  handles[i],
			family:  slot.family,
			index:   slot.index,
			flags:   c.gpu.QueueFamilies[slot.family].Flags,
			present: i == c.present,
		}
		if i == c.present {
			d.present = q
		}
		d.queues = append(d.queues, q)
	}
	d.env.log.WithFields(logrus.Fields{
		"device": c.gpu.Name,
		"type":   c.gpu.Type,
		"queues": len(d.queues),
	}).Info("device selected")
	return d, nil
}

// PhysicalDevice describes the GPU the device was created on.
func (d *Device) PhysicalDevice() native.PhysicalDevice {
	return d.gpu
}

// Queues returns the requested queues in request order. A queue added
// for presentation only comes last.
func (d *Device) Queues() []*Queue {
	return d.queues
}

// GraphicsQueue returns the first queue supporting graphics work, or nil.
func (d *Device) GraphicsQueue() *Queue {
	for _, q := range d.queues {
		if q.flags.Has(gfx.QueueGraphics) {
			return q
		}
	}
	return nil
}

// PresentQueue returns the queue able to present, or nil when the device
// was found without WithPresentation.
func (d *Device) PresentQueue() *Queue {
	return d.present
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *Device) WaitIdle() error {
	if err := live("Device.WaitIdle", &d.resource); err != nil {
		return err
	}
	if err := d.env.api.WaitIdle(d.handle); err != nil {
		return &ExecutionError{Op: "Device.WaitIdle", Err: err}
	}
	return nil
}

// sameDevice returns a ProtocolViolation if d is not the device of every
// listed resource owner.
func (d *Device) sameDevice(op string, devs ...*Device) error {
	for _, other := range devs {
		if other != d {
			return violation(op, "resources belong to different devices")
		}
	}
	return nil
}
