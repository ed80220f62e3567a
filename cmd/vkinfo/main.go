// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command vkinfo prints the physical devices a graphics driver reports as
// JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/core"
	"github.com/devblok/vksafe/native"
	"github.com/devblok/vksafe/native/nativetest"
	"github.com/devblok/vksafe/native/vulkan"
)

var (
	driver = flag.String("driver", "vulkan", "Driver to query: vulkan or fake")
	debug  = flag.Bool("debug", false, "Enable validation layers")
	indent = flag.Bool("indent", false, "Indent the output")
)

// Device is the printed description of one physical device.
type Device struct {
	Index         int           `json:"index"`
	Name          string        `json:"name"`
	Type          string        `json:"type"`
	VendorID      int           `json:"vendorID"`
	DeviceID      int           `json:"deviceID"`
	DriverVersion int           `json:"driverVersion"`
	Memory        uint64        `json:"memory"`
	Extensions    []string      `json:"extensions"`
	Layers        []string      `json:"layers"`
	QueueFamilies []QueueFamily `json:"queueFamilies"`
}

// QueueFamily is the printed description of a queue family.
type QueueFamily struct {
	Flags string `json:"flags"`
	Count int    `json:"count"`
}

func main() {
	os.Exit(main1())
}

func main1() int {
	flag.Parse()
	if err := run(); err != nil {
		log.WithError(err).Error("vkinfo failed")
		return 1
	}
	return 0
}

func newAPI(name string) (native.API, error) {
	switch name {
	case "vulkan":
		return vulkan.New(nil, log.StandardLogger())
	case "fake":
		return nativetest.New(), nil
	}
	return nil, errors.Errorf("unknown driver %q", name)
}

func run() error {
	api, err := newAPI(*driver)
	if err != nil {
		return err
	}
	inst, err := core.NewInstanceBuilder(api).
		WithApplicationName("vkinfo").
		WithDebug(*debug).
		WithLogger(log.StandardLogger()).
		Build()
	if err != nil {
		return err
	}
	defer inst.Destroy()

	gpus, err := inst.PhysicalDevices()
	if err != nil {
		return err
	}
	devices := make([]Device, len(gpus))
	for i, gpu := range gpus {
		devices[i] = describe(gpu)
	}

	var out []byte
	if *indent {
		out, err = json.MarshalIndent(devices, "", "  ")
	} else {
		out, err = json.Marshal(devices)
	}
	if err != nil {
		return errors.Wrap(err, "encode devices")
	}
	fmt.Printf("%s\n", out)
	return nil
}

func describe(gpu native.PhysicalDevice) Device {
	d := Device{
		Index:         gpu.Index,
		Name:          gpu.Name,
		Type:          gpu.Type.String(),
		VendorID:      gpu.VendorID,
		DeviceID:      gpu.ID,
		DriverVersion: gpu.DriverVersion,
		Memory:        gpu.Memory,
		Extensions:    gpu.Extensions,
		Layers:        gpu.Layers,
	}
	for _, family := range gpu.QueueFamilies {
		d.QueueFamilies = append(d.QueueFamilies, QueueFamily{
			Flags: family.Flags.String(),
			Count: family.Count,
		})
	}
	return d
}
