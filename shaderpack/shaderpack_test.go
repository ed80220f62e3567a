// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shaderpack_test

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vksafe/core"
	"github.com/devblok/vksafe/shaderpack"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = strings.Repeat("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb", 64)
)

// Archives serve as shader sources.
var _ core.ShaderSource = (*shaderpack.Archive)(nil)

func build(c *qt.C) []byte {
	builder := shaderpack.NewBuilder(shaderpack.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	c.Assert(builder.Add("triangle.vert.spv", strings.NewReader(testString1)), qt.IsNil)
	c.Assert(builder.Add("triangle.frag.spv", strings.NewReader(testString2)), qt.IsNil)
	c.Assert(builder.Add("triangle.frag.spv", strings.NewReader("")), qt.ErrorMatches, ".*added twice")

	var buf bytes.Buffer
	written, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(written, qt.Equals, int64(buf.Len()))
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	c := qt.New(t)
	ar, err := shaderpack.Open(bytes.NewReader(build(c)))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Names(), qt.DeepEquals, []string{"triangle.vert.spv", "triangle.frag.spv"})
	c.Assert(ar.Header().Author, qt.Equals, "devblok")

	data, err := ar.ReadShader("triangle.frag.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, testString2)

	data, err = ar.ReadAll("triangle.vert.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, testString1)

	_, err = ar.ReadAll("missing.vert.spv")
	c.Assert(err, qt.ErrorIs, shaderpack.ErrNotFound)
	c.Assert(ar.Close(), qt.IsNil)
}

func TestCompresses(t *testing.T) {
	c := qt.New(t)
	ar, err := shaderpack.Open(bytes.NewReader(build(c)))
	c.Assert(err, qt.IsNil)
	e := ar.Header().Index[1]
	c.Assert(e.Size, qt.Equals, int64(len(testString2)))
	c.Assert(e.CompressedSize < e.Size, qt.IsTrue)
}

func TestOpenFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "shaders.vksp")
	c.Assert(os.WriteFile(path, build(c), 0o644), qt.IsNil)

	ar, err := shaderpack.OpenFile(path)
	c.Assert(err, qt.IsNil)
	defer ar.Close()
	data, err := ar.ReadShader("triangle.vert.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, testString1)
}

func TestNotAnArchive(t *testing.T) {
	c := qt.New(t)
	for _, data := range [][]byte{
		nil,
		[]byte("KAR\x00\x01\x00\x00\x00\x00\x00\x00\x00"),
		[]byte("VKSP\x10\x00\x00\x00\x00\x00\x00\x00garbage"),
	} {
		_, err := shaderpack.Open(bytes.NewReader(data))
		c.Assert(err, qt.ErrorIs, shaderpack.ErrFileFormat)
	}
}

// readerAt hides the size of the underlying reader.
type readerAt struct {
	r io.ReaderAt
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

// archive assembles an archive with the given header size field, header
// and data.
func archive(c *qt.C, headerSize int64, header *shaderpack.Header, data []byte) []byte {
	var h bytes.Buffer
	if header != nil {
		c.Assert(gob.NewEncoder(&h).Encode(header), qt.IsNil)
	}
	if headerSize == 0 {
		headerSize = int64(h.Len())
	}
	size := make([]byte, shaderpack.HeaderSizeNumberLength)
	binary.LittleEndian.PutUint64(size, uint64(headerSize))

	out := append([]byte("VKSP"), size...)
	out = append(out, h.Bytes()...)
	return append(out, data...)
}

func TestCorruptHeader(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		about string
		data  []byte
	}{{
		about: "huge header size",
		data:  archive(c, 1<<62, nil, nil),
	}, {
		about: "negative header size",
		data:  archive(c, -8, nil, nil),
	}, {
		about: "header size past the end",
		data:  archive(c, 1<<20, nil, []byte("data")),
	}, {
		about: "negative file size",
		data: archive(c, 0, &shaderpack.Header{Index: []shaderpack.IndexEntry{
			{Name: "a.spv", Size: -1, CompressedSize: 4},
		}}, []byte("data")),
	}, {
		about: "negative offset",
		data: archive(c, 0, &shaderpack.Header{Index: []shaderpack.IndexEntry{
			{Name: "a.spv", Offset: -4, Size: 4, CompressedSize: 4},
		}}, []byte("data")),
	}, {
		about: "entry past the end",
		data: archive(c, 0, &shaderpack.Header{Index: []shaderpack.IndexEntry{
			{Name: "a.spv", Offset: 2, Size: 4, CompressedSize: 4},
		}}, []byte("data")),
	}, {
		about: "huge file size",
		data: archive(c, 0, &shaderpack.Header{Index: []shaderpack.IndexEntry{
			{Name: "a.spv", Size: 1 << 62, CompressedSize: 4},
		}}, []byte("data")),
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			_, err := shaderpack.Open(bytes.NewReader(test.data))
			c.Assert(err, qt.ErrorIs, shaderpack.ErrFileFormat)
		})
	}

	c.Run("unknown reader size", func(c *qt.C) {
		_, err := shaderpack.Open(readerAt{bytes.NewReader(archive(c, 1<<62, nil, nil))})
		c.Assert(err, qt.ErrorIs, shaderpack.ErrFileFormat)
		_, err = shaderpack.Open(readerAt{bytes.NewReader(archive(c, 1<<20, nil, nil))})
		c.Assert(err, qt.ErrorIs, shaderpack.ErrFileFormat)
	})

	c.Run("corrupt file", func(c *qt.C) {
		path := filepath.Join(c.TempDir(), "bad.vksp")
		c.Assert(os.WriteFile(path, archive(c, 1<<62, nil, nil), 0o644), qt.IsNil)
		_, err := shaderpack.OpenFile(path)
		c.Assert(err, qt.ErrorIs, shaderpack.ErrFileFormat)
	})
}
