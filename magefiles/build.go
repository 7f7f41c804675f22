//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/anima-resources/engine/resources/bundle"
	"github.com/spaghettifunk/anima-resources/engine/systems"
	"github.com/spaghettifunk/anima-resources/testbed"
)

const (
	dataDir    = "data"
	bundleFile = "data.bundle"
)

type Build mg.Namespace

// Stages the testbed data set into ./data.
func (Build) Data() error {
	return testbed.StageData(dataDir)
}

// Packs ./data into data.bundle.
func (Build) Bundle() error {
	mg.Deps(Build.Data)
	n, err := bundle.PackDir(dataDir, bundleFile, systems.BuiltinTypeVersion)
	if err != nil {
		return err
	}
	fi, err := os.Stat(bundleFile)
	if err != nil {
		return err
	}
	fmt.Printf("Packed %d resources into %s (%d bytes)\n", n, bundleFile, fi.Size())
	return nil
}

// Builds the testbed binary.
func (Build) Testbed() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/testbed", "."), withStream())
	return err
}
