//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Captures the drop in $DROP (a directory) to renders/ using dropview.toml
// when present.
func (Run) Capture() error {
	mg.Deps(Build.All)

	drop := os.Getenv("DROP")
	if drop == "" {
		return fmt.Errorf("set DROP to a directory of files to capture")
	}
	args := []string{"-input", drop}
	if _, err := os.Stat("dropview.toml"); err == nil {
		args = append(args, "-config", "dropview.toml")
	}
	_, err := executeCmd("bin/render", withArgs(args...), withStream())
	return err
}
