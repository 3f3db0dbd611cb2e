//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders into SPIR-V next to it.
// Stages whose SPIR-V is newer than the source are skipped.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	var sources []string
	err := filepath.WalkDir(shaderDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch filepath.Ext(path) {
		case ".vert", ".frag", ".comp":
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list shaders: %w", err)
	}
	compiled := 0
	for _, src := range sources {
		out := src + ".spv"
		stale, err := target.Path(out, src)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if err := run("glslc", src, "-o", out); err != nil {
			return err
		}
		compiled++
	}
	fmt.Printf("Compiled %d of %d shaders.\n", compiled, len(sources))
	return nil
}

// Runs the unit tests of every package.
func Test() error {
	return run("go", "test", "./...")
}

// Removes compiled SPIR-V files.
func Clean() error {
	return filepath.WalkDir(shaderDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".spv") {
			return err
		}
		return sh.Rm(path)
	})
}
