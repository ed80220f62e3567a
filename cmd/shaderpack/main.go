// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command shaderpack packs the compiled shaders of a directory into a
// shader archive, or lists the contents of one.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/core"
	"github.com/devblok/vksafe/shaderpack"
)

var (
	author  = flag.String("author", currentUserName(), "Set the author of the package when compressing")
	version = flag.Int64("version", 1, "Archive version number to create it with")
	dstFile = flag.String("o", "shaders.vksp", "Destination file")
	list    = flag.String("l", "", "List the contents of the given archive")
	force   = flag.Bool("f", false, "Overwrite the destination file")
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func main() {
	os.Exit(main1())
}

func main1() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: shaderpack [flags] directory\n       shaderpack -l archive\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var err error
	switch {
	case *list != "":
		err = listFiles(*list)
	case flag.NArg() == 1:
		err = compressFiles(flag.Arg(0))
	default:
		flag.Usage()
		return 2
	}
	if err != nil {
		log.WithError(err).Error("shaderpack failed")
		return 1
	}
	return 0
}

func compressFiles(dir string) error {
	if _, err := os.Stat(*dstFile); err == nil && !*force {
		return errors.Errorf("destination file %s exists, will not overwrite", *dstFile)
	}

	src := core.DirSource(dir)
	names, err := src.Shaders()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.Errorf("no shaders in %s", dir)
	}

	builder := shaderpack.NewBuilder(shaderpack.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			return err
		}
		err = builder.Add(name, f)
		f.Close()
		if err != nil {
			return err
		}
		log.WithField("name", name).Debug("added")
	}

	dst, err := os.Create(*dstFile)
	if err != nil {
		return err
	}
	written, err := builder.WriteTo(dst)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "write %s", *dstFile)
	}
	log.WithFields(log.Fields{
		"file":    *dstFile,
		"shaders": len(names),
		"bytes":   written,
	}).Info("archive written")
	return nil
}

func listFiles(name string) error {
	ar, err := shaderpack.OpenFile(name)
	if err != nil {
		return err
	}
	defer ar.Close()

	header := ar.Header()
	fmt.Printf("author: %s\nversion: %d\n", header.Author, header.Version)
	for _, e := range header.Index {
		fmt.Printf("%s\t%d\t%d\n", e.Name, e.Size, e.CompressedSize)
	}
	return nil
}
