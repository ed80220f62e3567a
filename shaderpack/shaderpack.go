// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package shaderpack is an lz4 backed archive format for compiled shaders.
// Every file is compressed on its own and the index comes first, so a file
// can be located and decompressed without reading the others. An Archive
// can be read from concurrently.
//
// Layout: the magic "VKSP", the header length as a little endian int64,
// the gob encoded Header, then the compressed files back to back.
package shaderpack

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/pkg/errors"
)

// package errors
var (
	ErrFileFormat = errors.New("shaderpack: corrupted or not a shader archive")
	ErrNotFound   = errors.New("shaderpack: no such file in archive")
)

// Sizes relevant to the header of file
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 8

	// MaxHeaderSize and MaxFileSize bound what a reader will allocate
	// for an archive whose size it cannot tell.
	MaxHeaderSize = 16 << 20
	MaxFileSize   = 1 << 30
)

var magic = [MagicLength]byte{'V', 'K', 'S', 'P'}

// IndexEntry is info for one file in the file index. Offset is relative to
// the end of the header.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the file header for shader archives.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

// check reports whether every index entry lies within an archive whose
// data section holds dataSize bytes. A negative dataSize is unknown.
func (h *Header) check(dataSize int64) error {
	for _, e := range h.Index {
		if e.Offset < 0 || e.CompressedSize < 0 || e.Size < 0 || e.Size > MaxFileSize {
			return errors.Wrapf(ErrFileFormat, "%s: bad index entry", e.Name)
		}
		if dataSize >= 0 && e.Offset+e.CompressedSize > dataSize {
			return errors.Wrapf(ErrFileFormat, "%s: past the end of the archive", e.Name)
		}
	}
	return nil
}

func (h *Header) entry(name string) (IndexEntry, bool) {
	for _, e := range h.Index {
		if e.Name == name {
			return e, true
		}
	}
	return IndexEntry{}, false
}

func int64ToBinary(num int64) []byte {
	buf := make([]byte, HeaderSizeNumberLength)
	binary.LittleEndian.PutUint64(buf, uint64(num))
	return buf
}

func binaryToint64(bts []byte) int64 {
	return int64(binary.LittleEndian.Uint64(bts))
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	return gob.NewDecoder(bytes.NewReader(bts)).Decode(obj)
}
