// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command vktriangle opens a window and draws a triangle until the window
// is closed or escape is pressed.
package main

//go:generate glslc shaders/triangle.vert -o shaders/triangle.vert.spv
//go:generate glslc shaders/triangle.frag -o shaders/triangle.frag.spv

import (
	"flag"
	"os"
	"runtime"
	"strings"

	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/config"
	"github.com/devblok/vksafe/core"
	"github.com/devblok/vksafe/internal/clock"
	"github.com/devblok/vksafe/internal/triangle"
	"github.com/devblok/vksafe/native/vulkan"
	"github.com/devblok/vksafe/shaderpack"
	"github.com/devblok/vksafe/window"
)

func init() {
	runtime.LockOSThread()
}

var envFiles = flag.String("env", "", "Comma separated .env files to load the configuration from")

// StaticShaders are the compiled shaders built into the program.
var StaticShaders = packr.NewBox("./shaders")

// Windows satisfy the core collaborator contract.
var _ core.Window = (*window.SDL)(nil)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.WithError(err).Fatal("vktriangle failed")
	}
}

func run() error {
	var files []string
	if *envFiles != "" {
		files = strings.Split(*envFiles, ",")
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.Instance.LogLevel)

	quit, err := window.Init()
	if err != nil {
		return err
	}
	defer quit()

	win, err := window.New(cfg.Instance.ApplicationName, cfg.Window.Width, cfg.Window.Height, log.StandardLogger())
	if err != nil {
		return err
	}
	defer win.Destroy()

	api, err := vulkan.New(window.ProcAddr(), log.StandardLogger())
	if err != nil {
		return err
	}
	inst, err := core.NewInstanceBuilder(api).
		WithApplicationName(cfg.Instance.ApplicationName).
		WithDebug(cfg.Instance.DebugMode).
		AddExtensions(win.RequiredExtensions()...).
		WithLogger(log.StandardLogger()).
		Build()
	if err != nil {
		return err
	}
	defer inst.Destroy()

	surface, err := core.NewSurface(inst, win)
	if err != nil {
		return err
	}
	defer surface.Destroy()

	dev, err := inst.FindGPU().WithPresentation(surface).Build()
	if err != nil {
		return err
	}
	defer dev.Destroy()
	log.WithFields(log.Fields{
		"gpu":  dev.PhysicalDevice().Name,
		"type": dev.PhysicalDevice().Type,
	}).Info("device selected")

	shaders, closeShaders, err := shaderSource(cfg.Renderer.ShaderDirectory)
	if err != nil {
		return err
	}
	defer closeShaders()

	r, err := triangle.New(dev, surface, shaders, win, cfg.Renderer, log.StandardLogger())
	if err != nil {
		return err
	}
	defer r.Destroy()

	t := clock.New(cfg.Time)
	defer t.Stop()
	for !win.CloseRequested() {
		<-t.FpsTicker().C
		win.Update()
		if err := r.Frame(); err != nil {
			return err
		}
		t.Frame()
	}
	log.WithFields(log.Fields{
		"frames": t.Frames(),
		"fps":    t.Average(),
	}).Info("event loop exited")
	return nil
}

// shaderSource picks where shaders come from: the box built into the
// program, a shader archive, or a directory of compiled shaders.
func shaderSource(location string) (core.ShaderSource, func() error, error) {
	nop := func() error { return nil }
	if location == "" {
		return core.FinderSource(&StaticShaders), nop, nil
	}
	info, err := os.Stat(location)
	if err != nil {
		return nil, nil, errors.Wrap(err, "shader location")
	}
	if info.IsDir() {
		return core.DirSource(location), nop, nil
	}
	ar, err := shaderpack.OpenFile(location)
	if err != nil {
		return nil, nil, err
	}
	return ar, ar.Close, nil
}
