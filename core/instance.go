// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/native"
)

const (
	defaultApplicationName = "vksafe"
	engineName             = "vksafe"

	validationLayer = "VK_LAYER_KHRONOS_validation"
	debugExtension  = "VK_EXT_debug_utils"
)

// Instance is the root of the ownership graph.
type Instance struct {
	resource
}

// InstanceBuilder configures an Instance.
type InstanceBuilder struct {
	builder
	api  native.API
	info native.InstanceInfo
	log  logrus.FieldLogger
}

// NewInstanceBuilder starts configuring an instance driving api.
func NewInstanceBuilder(api native.API) *InstanceBuilder {
	return &InstanceBuilder{
		api: api,
		info: native.InstanceInfo{
			ApplicationName: defaultApplicationName,
			EngineName:      engineName,
		},
		log: logrus.StandardLogger(),
	}
}

// AddExtension enables an instance extension.
func (b *InstanceBuilder) AddExtension(name string) *InstanceBuilder {
	b.info.Extensions = appendUnique(b.info.Extensions, name)
	return b
}

// AddExtensions enables several instance extensions, typically the ones a
// Window requires.
func (b *InstanceBuilder) AddExtensions(names ...string) *InstanceBuilder {
	for _, name := range names {
		b.AddExtension(name)
	}
	return b
}

// AddLayer enables an instance layer.
func (b *InstanceBuilder) AddLayer(name string) *InstanceBuilder {
	b.info.Layers = appendUnique(b.info.Layers, name)
	return b
}

// WithDebug turns on validation and debug logging of deferred
// destruction.
func (b *InstanceBuilder) WithDebug(debug bool) *InstanceBuilder {
	b.info.Debug = debug
	return b
}

func (b *InstanceBuilder) WithApplicationName(name string) *InstanceBuilder {
	b.info.ApplicationName = name
	return b
}

// WithLogger sets the logger used by the instance and every resource
// created from it.
func (b *InstanceBuilder) WithLogger(log logrus.FieldLogger) *InstanceBuilder {
	b.log = log
	return b
}

// Build creates the instance.
func (b *InstanceBuilder) Build() (*Instance, error) {
	if err := b.consume("Instance"); err != nil {
		return nil, err
	}
	info := b.info
	if info.Debug {
		info.Layers = appendUnique(info.Layers, validationLayer)
		info.Extensions = appendUnique(info.Extensions, debugExtension)
	}
	h, err := b.api.CreateInstance(info)
	if err != nil {
		return nil, creationError("Instance", err)
	}
	e := &env{api: b.api, log: b.log, debug: info.Debug}
	e.log.WithFields(logrus.Fields{
		"application": info.ApplicationName,
		"extensions":  info.Extensions,
		"layers":      info.Layers,
	}).Info("instance created")
	return &Instance{
		resource: newResource(e, "Instance", h, b.api.DestroyInstance),
	}, nil
}

// PhysicalDevices describes every GPU the instance can see.
func (i *Instance) PhysicalDevices() ([]native.PhysicalDevice, error) {
	if err := live("Instance.PhysicalDevices", &i.resource); err != nil {
		return nil, err
	}
	devices, err := i.env.api.PhysicalDevices(i.handle)
	if err != nil {
		return nil, &ExecutionError{Op: "Instance.PhysicalDevices", Err: err}
	}
	return devices, nil
}

// Logger returns the logger resources of this instance log to.
func (i *Instance) Logger() logrus.FieldLogger {
	return i.env.log
}

func appendUnique(list []string, name string) []string {
	for _, s := range list {
		if s == name {
			return list
		}
	}
	return append(list, name)
}
