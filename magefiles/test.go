//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the resource pipeline tests only.
func (Test) Systems() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./engine/systems/..."), withDir("."), withStream())
	return err
}

// Tidies modules and vets the tree.
func (Test) Vet() error {
	if err := goTidy(); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}
