//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var commands = []string{"render", "capture", "inspect", "watch"}

// Builds every command into bin/.
func (Build) All() error {
	for _, c := range commands {
		if err := buildCommand(c); err != nil {
			return err
		}
	}
	return nil
}

func buildCommand(name string) error {
	out := filepath.Join("bin", name)
	if _, err := executeCmd("go", withArgs("build", "-o", out, "./cmd/"+name)); err != nil {
		return err
	}
	fmt.Printf("Built %s\n", out)
	return nil
}
