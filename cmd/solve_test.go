package cmd

import (
	"testing"

	"github.com/magiconair/properties/assert"

	"github.com/notargets/fastdiag/config"
)

func TestRunSolve(t *testing.T) {
	var (
		err error
	)
	fileInput := []byte(`
Title: Test Case
Dim: 2
MeshCells: 2
PolynomialOrder: 3
Preconditioner: PMG
Tolerance: 1.e-08
Alpha:
  x0: 2.0
  x1: 0.5
`)
	var input config.RunParameters
	if err = input.Parse(fileInput); err != nil {
		panic(err)
	}
	// Check the per-axis diffusivity map
	assert.Equal(t, input.Alpha["x0"], 2.)
	assert.Equal(t, input.Alpha["x1"], 0.5)
	input.Print()
	assert.Equal(t, input.Preconditioner, "PMG")

	if err = RunSolve(&input); err != nil {
		panic(err)
	}
}
