// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/vksafe/native"
)

type instance struct {
	vk   vk.Instance
	gpus []vk.PhysicalDevice
}

type surface struct {
	instance vk.Instance
	vk       vk.Surface
}

type device struct {
	vk     vk.Device
	gpu    vk.PhysicalDevice
	queues []native.Handle
}

type queue struct {
	vk vk.Queue
}

// CreateInstance implements native.API.
func (a *API) CreateInstance(info native.InstanceInfo) (native.Handle, error) {
	engine := info.EngineName
	if engine == "" {
		engine = EngineName
	}
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 0, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   safeString(info.ApplicationName),
		PEngineName:        safeString(engine),
	}
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     safeStrings(info.Layers),
	}

	var inst vk.Instance
	if err := check("vk.CreateInstance()", vk.CreateInstance(&instanceInfo, nil, &inst)); err != nil {
		return native.Null, err
	}
	if err := vk.InitInstance(inst); err != nil {
		vk.DestroyInstance(inst, nil)
		return native.Null, errors.Wrap(native.ErrInitializationFailed, err.Error())
	}

	gpus, err := enumerateDevices(inst)
	if err != nil {
		vk.DestroyInstance(inst, nil)
		return native.Null, err
	}
	a.log.WithFields(logrus.Fields{
		"extensions": info.Extensions,
		"layers":     info.Layers,
		"gpus":       len(gpus),
	}).Debug("vulkan instance created")
	return a.put(&instance{vk: inst, gpus: gpus}), nil
}

func enumerateDevices(inst vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := check("vk.EnumeratePhysicalDevices()", vk.EnumeratePhysicalDevices(inst, &deviceCount, nil)); err != nil {
		return nil, err
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := check("vk.EnumeratePhysicalDevices()", vk.EnumeratePhysicalDevices(inst, &deviceCount, availableDevices)); err != nil {
		return nil, err
	}
	return availableDevices[:deviceCount], nil
}

// DestroyInstance implements native.API.
func (a *API) DestroyInstance(h native.Handle) {
	if inst, ok := a.take(h).(*instance); ok {
		vk.DestroyInstance(inst.vk, nil)
	}
}

func (a *API) instance(op string, h native.Handle) (*instance, error) {
	inst, ok := a.get(h).(*instance)
	if !ok {
		return nil, a.unknown(op, h)
	}
	return inst, nil
}

// PhysicalDevices implements native.API.
func (a *API) PhysicalDevices(h native.Handle) ([]native.PhysicalDevice, error) {
	inst, err := a.instance("PhysicalDevices", h)
	if err != nil {
		return nil, err
	}
	pdi := make([]native.PhysicalDevice, len(inst.gpus))
	for i, gpu := range inst.gpus {
		info, err := describe(gpu)
		if err != nil {
			return nil, err
		}
		info.Index = i
		pdi[i] = info
	}
	return pdi, nil
}

func describe(gpu vk.PhysicalDevice) (native.PhysicalDevice, error) {
	var pdi native.PhysicalDevice

	// Get extension info
	var numDeviceExtensions uint32
	if err := check("vk.EnumerateDeviceExtensionProperties()", vk.EnumerateDeviceExtensionProperties(gpu, "", &numDeviceExtensions, nil)); err != nil {
		return pdi, err
	}
	deviceExt := make([]vk.ExtensionProperties, numDeviceExtensions)
	if err := check("vk.EnumerateDeviceExtensionProperties()", vk.EnumerateDeviceExtensionProperties(gpu, "", &numDeviceExtensions, deviceExt)); err != nil {
		return pdi, err
	}
	for _, ext := range deviceExt[:numDeviceExtensions] {
		ext.Deref()
		pdi.Extensions = append(pdi.Extensions, vk.ToString(ext.ExtensionName[:]))
	}

	// Get layers info
	var numDeviceLayers uint32
	if err := check("vk.EnumerateDeviceLayerProperties()", vk.EnumerateDeviceLayerProperties(gpu, &numDeviceLayers, nil)); err != nil {
		return pdi, err
	}
	deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
	if err := check("vk.EnumerateDeviceLayerProperties()", vk.EnumerateDeviceLayerProperties(gpu, &numDeviceLayers, deviceLayers)); err != nil {
		return pdi, err
	}
	for _, layer := range deviceLayers[:numDeviceLayers] {
		layer.Deref()
		pdi.Layers = append(pdi.Layers, vk.ToString(layer.LayerName[:]))
	}

	// Device local memory
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memoryProperties)
	memoryProperties.Deref()
	for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
		heap := memoryProperties.MemoryHeaps[iMem]
		heap.Deref()
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			pdi.Memory += uint64(heap.Size)
		}
	}

	// General device info
	var physicalDeviceProperties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &physicalDeviceProperties)
	physicalDeviceProperties.Deref()
	pdi.ID = int(physicalDeviceProperties.DeviceID)
	pdi.VendorID = int(physicalDeviceProperties.VendorID)
	pdi.Name = vk.ToString(physicalDeviceProperties.DeviceName[:])
	pdi.DriverVersion = int(physicalDeviceProperties.DriverVersion)
	pdi.Type = deviceType(physicalDeviceProperties.DeviceType)

	// Queue families
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueFamilyCount, queueFamilies)
	for _, family := range queueFamilies[:queueFamilyCount] {
		family.Deref()
		pdi.QueueFamilies = append(pdi.QueueFamilies, native.QueueFamily{
			Flags: queueFlags(family.QueueFlags),
			Count: int(family.QueueCount),
		})
	}
	return pdi, nil
}

// SurfaceSupport implements native.API.
func (a *API) SurfaceSupport(h native.Handle, physicalDevice, family int, srf native.Handle) (bool, error) {
	inst, err := a.instance("SurfaceSupport", h)
	if err != nil {
		return false, err
	}
	s, ok := a.get(srf).(*surface)
	if !ok {
		return false, a.unknown("SurfaceSupport", srf)
	}
	if physicalDevice < 0 || physicalDevice >= len(inst.gpus) {
		return false, errors.Wrapf(native.ErrUnknown, "SurfaceSupport: no physical device %d", physicalDevice)
	}

	var supported vk.Bool32
	result := vk.GetPhysicalDeviceSurfaceSupport(inst.gpus[physicalDevice], uint32(family), s.vk, &supported)
	if err := check("vk.GetPhysicalDeviceSurfaceSupport()", result); err != nil {
		return false, err
	}
	return supported.B(), nil
}

// CreateSurface implements native.API. The source receives the vk.Instance.
func (a *API) CreateSurface(h native.Handle, src native.SurfaceSource) (native.Handle, error) {
	inst, err := a.instance("CreateSurface", h)
	if err != nil {
		return native.Null, err
	}
	ptr, err := src.NewSurface(inst.vk)
	if err != nil {
		return native.Null, errors.Wrap(native.ErrInitializationFailed, err.Error())
	}
	return a.put(&surface{instance: inst.vk, vk: vk.SurfaceFromPointer(ptr)}), nil
}

// DestroySurface implements native.API.
func (a *API) DestroySurface(h native.Handle) {
	if s, ok := a.take(h).(*surface); ok {
		vk.DestroySurface(s.instance, s.vk, nil)
	}
}

// CreateDevice implements native.API.
func (a *API) CreateDevice(info native.DeviceInfo) (native.Handle, error) {
	inst, err := a.instance("CreateDevice", info.Instance)
	if err != nil {
		return native.Null, err
	}
	if info.PhysicalDevice < 0 || info.PhysicalDevice >= len(inst.gpus) {
		return native.Null, errors.Wrapf(native.ErrUnknown, "CreateDevice: no physical device %d", info.PhysicalDevice)
	}
	gpu := inst.gpus[info.PhysicalDevice]

	queueInfos := make([]vk.DeviceQueueCreateInfo, len(info.Queues))
	for i, q := range info.Queues {
		priorities := make([]float32, q.Count)
		for p := range priorities {
			priorities[p] = 1
		}
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(q.Family),
			QueueCount:       uint32(q.Count),
			PQueuePriorities: priorities,
		}
	}

	extensions := info.Extensions
	if info.Synchronization2 {
		extensions = appendMissing(extensions, "VK_KHR_synchronization2")
	}

	var vkDevice vk.Device
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if err := check("vk.CreateDevice()", vk.CreateDevice(gpu, &dci, nil, &vkDevice)); err != nil {
		return native.Null, err
	}
	a.log.WithFields(logrus.Fields{
		"gpu":        info.PhysicalDevice,
		"extensions": extensions,
	}).Debug("vulkan device created")
	return a.put(&device{vk: vkDevice, gpu: gpu}), nil
}

func appendMissing(list []string, name string) []string {
	for _, s := range list {
		if s == name {
			return list
		}
	}
	return append(append([]string(nil), list...), name)
}

// DestroyDevice implements native.API.
func (a *API) DestroyDevice(h native.Handle) {
	d, ok := a.take(h).(*device)
	if !ok {
		return
	}
	a.mutex.Lock()
	for _, q := range d.queues {
		delete(a.objects, q)
	}
	a.mutex.Unlock()
	vk.DestroyDevice(d.vk, nil)
}

func (a *API) device(op string, h native.Handle) (*device, error) {
	d, ok := a.get(h).(*device)
	if !ok {
		return nil, a.unknown(op, h)
	}
	return d, nil
}

// DeviceQueue implements native.API. Queue handles are dropped together
// with their device.
func (a *API) DeviceQueue(h native.Handle, family, index int) (native.Handle, error) {
	d, err := a.device("DeviceQueue", h)
	if err != nil {
		return native.Null, err
	}
	var q vk.Queue
	vk.GetDeviceQueue(d.vk, uint32(family), uint32(index), &q)
	qh := a.put(&queue{vk: q})
	a.mutex.Lock()
	d.queues = append(d.queues, qh)
	a.mutex.Unlock()
	return qh, nil
}

// WaitIdle implements native.API.
func (a *API) WaitIdle(h native.Handle) error {
	d, err := a.device("WaitIdle", h)
	if err != nil {
		return err
	}
	return check("vk.DeviceWaitIdle()", vk.DeviceWaitIdle(d.vk))
}
