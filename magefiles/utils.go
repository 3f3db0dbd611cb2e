//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/sh"
)

// run echoes the command line and streams its output to the terminal.
func run(command string, args ...string) error {
	fmt.Printf("Executing: %s %s\n", command, strings.Join(args, " "))
	if err := sh.RunV(command, args...); err != nil {
		return fmt.Errorf("%s failed: %w", command, err)
	}
	return nil
}
