package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDefaults(t *testing.T) {
	rp := &RunParameters{}
	assert.NoError(t, rp.Parse([]byte(`Title: "Defaults"`)))
	assert.Equal(t, 2, rp.Dim)
	assert.Equal(t, 4, rp.MeshCells)
	assert.Equal(t, 4, rp.PolynomialOrder)
	assert.Equal(t, "FDM", rp.Preconditioner)
	assert.Equal(t, 1, rp.CoarseDegree)
	assert.Equal(t, 1.e-08, rp.Tolerance)
	assert.Equal(t, []float64{1, 1}, rp.AlphaDiag())
}

func TestParseFull(t *testing.T) {
	data := []byte(`
Title: "Anisotropic run"
Dim: 3
MeshCells: 8
PolynomialOrder: 5
Preconditioner: PMG
CoarseDegree: 2
DiagonalScaling: true
Tolerance: 1.e-10
MaxIterations: 50
Alpha:
  x0: 2.0
  x2: 0.5
Beta: 0.25
`)
	rp := &RunParameters{}
	assert.NoError(t, rp.Parse(data))
	assert.Equal(t, "PMG", rp.Preconditioner)
	assert.Equal(t, 2, rp.CoarseDegree)
	assert.Equal(t, []float64{2, 1, 0.5}, rp.AlphaDiag())
	assert.Equal(t, 0.25, rp.Beta)
}

func TestParseRejectsBadValues(t *testing.T) {
	rp := &RunParameters{}
	assert.Error(t, rp.Parse([]byte(`Preconditioner: AMG`)))
	rp = &RunParameters{}
	assert.Error(t, rp.Parse([]byte(`Dim: 4`)))
}
