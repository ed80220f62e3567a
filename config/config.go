// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config loads the settings of the vksafe programs from .env files
// and the environment.
package config

import (
	"strconv"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Environment keys.
const (
	KeyAppName       = "VKSAFE_APP_NAME"
	KeyDebug         = "VKSAFE_DEBUG"
	KeyLogLevel      = "VKSAFE_LOG_LEVEL"
	KeyWidth         = "VKSAFE_WIDTH"
	KeyHeight        = "VKSAFE_HEIGHT"
	KeySwapchainSize = "VKSAFE_SWAPCHAIN_SIZE"
	KeyShaders       = "VKSAFE_SHADERS"
	KeyFPS           = "VKSAFE_FPS"
)

// Configuration defines the global settings of a program
type Configuration struct {
	Instance InstanceConfiguration
	Window   WindowConfiguration
	Renderer RendererConfiguration
	Time     TimeConfiguration
}

// InstanceConfiguration is used to configure the graphics instance
type InstanceConfiguration struct {
	ApplicationName string
	// DebugMode loads validation layers and logs deferred destruction.
	DebugMode bool
	LogLevel  logrus.Level
}

// WindowConfiguration sets the initial window size
type WindowConfiguration struct {
	Width  uint32
	Height uint32
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize int
	// ShaderDirectory holds compiled shaders or shader archives. Empty means
	// the shaders built into the program.
	ShaderDirectory string
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// Default returns the configuration used when nothing is set.
func Default() Configuration {
	return Configuration{
		Instance: InstanceConfiguration{
			ApplicationName: "vksafe",
			LogLevel:        logrus.InfoLevel,
		},
		Window: WindowConfiguration{
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfiguration{
			SwapchainSize: 3,
		},
		Time: TimeConfiguration{
			FramesPerSecond: 60,
		},
	}
}

// Load reads files in order, later files overriding earlier ones, and then
// builds the configuration from the environment on top of Default.
func Load(files ...string) (Configuration, error) {
	for _, file := range files {
		vars, err := godotenv.Read(file)
		if err != nil {
			return Configuration{}, errors.Wrapf(err, "read %s", file)
		}
		for k, v := range vars {
			envy.Set(k, v)
		}
	}

	cfg := Default()
	cfg.Instance.ApplicationName = envy.Get(KeyAppName, cfg.Instance.ApplicationName)
	cfg.Renderer.ShaderDirectory = envy.Get(KeyShaders, cfg.Renderer.ShaderDirectory)

	var err error
	if cfg.Instance.DebugMode, err = boolVar(KeyDebug, cfg.Instance.DebugMode); err != nil {
		return Configuration{}, err
	}
	if level := envy.Get(KeyLogLevel, ""); level != "" {
		if cfg.Instance.LogLevel, err = logrus.ParseLevel(level); err != nil {
			return Configuration{}, errors.Wrapf(err, "%s", KeyLogLevel)
		}
	}
	if cfg.Window.Width, err = uintVar(KeyWidth, cfg.Window.Width); err != nil {
		return Configuration{}, err
	}
	if cfg.Window.Height, err = uintVar(KeyHeight, cfg.Window.Height); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.SwapchainSize, err = intVar(KeySwapchainSize, cfg.Renderer.SwapchainSize); err != nil {
		return Configuration{}, err
	}
	if cfg.Time.FramesPerSecond, err = intVar(KeyFPS, cfg.Time.FramesPerSecond); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.SwapchainSize < 1 {
		return Configuration{}, errors.Errorf("%s must be at least 1, got %d", KeySwapchainSize, cfg.Renderer.SwapchainSize)
	}
	return cfg, nil
}

func boolVar(key string, def bool) (bool, error) {
	s := envy.Get(key, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	return v, errors.Wrapf(err, "%s", key)
}

func intVar(key string, def int) (int, error) {
	s := envy.Get(key, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	return v, errors.Wrapf(err, "%s", key)
}

func uintVar(key string, def uint32) (uint32, error) {
	s := envy.Get(key, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), errors.Wrapf(err, "%s", key)
}
