// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobuffalo/packd"
	"github.com/pkg/errors"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

const shaderSuffix = ".spv"

// ShaderSource provides compiled SPIR-V shaders by name.
type ShaderSource interface {
	ReadShader(name string) ([]byte, error)
}

// DirSource reads shaders from files in a directory.
type DirSource string

// ReadShader implements ShaderSource.
func (d DirSource) ReadShader(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), name))
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", name)
	}
	return data, nil
}

// Shaders lists the compiled shaders in the directory. A shader file is
// named name.stage.spv; files without a known stage are skipped.
func (d DirSource) Shaders() ([]string, error) {
	var shaders []string
	if err := filepath.Walk(string(d), func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() || !strings.HasSuffix(f.Name(), shaderSuffix) {
			return nil
		}
		if _, ok := gfx.ShaderStageFromName(f.Name()); !ok {
			return nil
		}
		rel, err := filepath.Rel(string(d), path)
		if err != nil {
			return err
		}
		shaders = append(shaders, filepath.ToSlash(rel))
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "list shaders in %s", string(d))
	}
	sort.Strings(shaders)
	return shaders, nil
}

type finderSource struct {
	finder packd.Finder
}

// FinderSource reads shaders from a packd.Finder such as a packr box.
func FinderSource(f packd.Finder) ShaderSource {
	return finderSource{finder: f}
}

func (s finderSource) ReadShader(name string) ([]byte, error) {
	data, err := s.finder.Find(name)
	if err != nil {
		return nil, errors.Wrapf(err, "find shader %s", name)
	}
	return data, nil
}

// ShaderModule is compiled shader code on a device. Ownership of a module
// passes to the pipeline builder it is added to.
type ShaderModule struct {
	resource
	dev *Device
}

// NewShaderModule creates a module from SPIR-V code.
func NewShaderModule(dev *Device, code []byte) (*ShaderModule, error) {
	if dev == nil {
		return nil, missing("NewShaderModule", "device")
	}
	if err := live("NewShaderModule", &dev.resource); err != nil {
		return nil, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, creationError("ShaderModule", errors.Wrapf(ErrInvalidConfiguration, "%d bytes of SPIR-V", len(code)))
	}
	h, err := dev.env.api.CreateShaderModule(native.ShaderModuleInfo{
		Device: dev.handle,
		Code:   sliceUint32(code),
	})
	if err != nil {
		return nil, creationError("ShaderModule", err)
	}
	return &ShaderModule{
		resource: newResource(dev.env, "ShaderModule", h, dev.env.api.DestroyShaderModule, dev.node()),
		dev:      dev,
	}, nil
}

// LoadShaderModule reads the named shader from src and creates a module
// from it.
func LoadShaderModule(dev *Device, src ShaderSource, name string) (*ShaderModule, error) {
	code, err := src.ReadShader(name)
	if err != nil {
		return nil, creationError("ShaderModule", err)
	}
	return NewShaderModule(dev, code)
}

// sliceUint32 reinterprets little endian SPIR-V bytes as words.
func sliceUint32(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
	return words
}
