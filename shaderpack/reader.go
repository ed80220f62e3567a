// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shaderpack

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Open opens the archive read from r. It will also check
// if the file is actually a shader archive, will return ErrFileFormat
// when it is not.
func Open(r io.ReaderAt) (*Archive, error) {
	prefix := make([]byte, MagicLength+HeaderSizeNumberLength)
	if _, err := r.ReadAt(prefix, 0); err != nil {
		if err == io.EOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}
	if !bytes.Equal(prefix[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	size := readerSize(r)
	headerSize := binaryToint64(prefix[MagicLength:])
	if headerSize <= 0 || headerSize > MaxHeaderSize {
		return nil, errors.Wrapf(ErrFileFormat, "header size %d", headerSize)
	}
	base := int64(len(prefix)) + headerSize
	if size >= 0 && base > size {
		return nil, errors.Wrapf(ErrFileFormat, "header size %d in %d bytes", headerSize, size)
	}
	headerBytes := make([]byte, headerSize)
	if _, err := r.ReadAt(headerBytes, int64(len(prefix))); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}
	dataSize := int64(-1)
	if size >= 0 {
		dataSize = size - base
	}
	if err := header.check(dataSize); err != nil {
		return nil, err
	}
	return &Archive{
		reader: r,
		header: header,
		base:   base,
	}, nil
}

// readerSize returns the size of r when it can tell, or -1.
func readerSize(r io.ReaderAt) int64 {
	switch r := r.(type) {
	case interface{ Size() int64 }:
		return r.Size()
	case interface{ Len() int }:
		return int64(r.Len())
	}
	return -1
}

// OpenFile memory maps the named file and opens the archive in it. Close the archive
// when done.
func OpenFile(name string) (*Archive, error) {
	f, err := mmap.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	ar, err := Open(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "open %s", name)
	}
	ar.closer = f
	return ar, nil
}

// Archive provides concurrent io for a shader archive, and can provide
// an io.Reader for each file separately.
type Archive struct {
	reader io.ReaderAt
	closer io.Closer
	header Header
	base   int64
}

// Header returns the archive header including its index.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the archived files in the order they were added.
func (a *Archive) Names() []string {
	names := make([]string, len(a.header.Index))
	for i, e := range a.header.Index {
		names[i] = e.Name
	}
	return names
}

// Open returns a reader of the decompressed contents of a file.
func (a *Archive) Open(name string) (io.Reader, error) {
	e, ok := a.header.entry(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return lz4.NewReader(io.NewSectionReader(a.reader, a.base+e.Offset, e.CompressedSize)), nil
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	e, _ := a.header.entry(name)
	data := make([]byte, 0, e.Size)
	buf := bytes.NewBuffer(data)
	if _, err := io.Copy(buf, io.LimitReader(r, e.Size+1)); err != nil {
		return nil, errors.Wrapf(err, "decompress %s", name)
	}
	if int64(buf.Len()) != e.Size {
		return nil, errors.Wrapf(ErrFileFormat, "%s: %d bytes, index says %d", name, buf.Len(), e.Size)
	}
	return buf.Bytes(), nil
}

// ReadShader returns the named shader, making the archive usable as a
// shader source.
func (a *Archive) ReadShader(name string) ([]byte, error) {
	return a.ReadAll(name)
}

// Close closes the file opened by OpenFile. It does nothing for archives
// opened with Open.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
