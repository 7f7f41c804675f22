//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed over the loose data directory.
func (Run) Testbed() error {
	fmt.Println("Run testbed...")
	_, err := executeCmd("go", withArgs("run", "main.go"), withStream())
	return err
}

// Runs the testbed from data.bundle.
func (Run) Bundle() error {
	mg.Deps(Build.Bundle)
	_, err := executeCmd("go", withArgs("run", "main.go", "-bundle", bundleFile), withStream())
	return err
}
