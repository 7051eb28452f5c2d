// Package config holds the YAML run description of the benchmark driver.
package config

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type RunParameters struct {
	Title           string             `yaml:"Title"`
	Dim             int                `yaml:"Dim"`
	MeshCells       int                `yaml:"MeshCells"`
	PolynomialOrder int                `yaml:"PolynomialOrder"`
	Preconditioner  string             `yaml:"Preconditioner"` // FDM or PMG
	CoarseDegree    int                `yaml:"CoarseDegree"`
	Condense        bool               `yaml:"Condense"`
	DiagonalScaling bool               `yaml:"DiagonalScaling"`
	InteriorPenalty bool               `yaml:"InteriorPenalty"`
	PenaltyEta      float64            `yaml:"PenaltyEta"`
	Tolerance       float64            `yaml:"Tolerance"`
	MaxIterations   int                `yaml:"MaxIterations"`
	Alpha           map[string]float64 `yaml:"Alpha"` // per-axis diffusivity, keys x0, x1, x2
	Beta            float64            `yaml:"Beta"`
}

func (rp *RunParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, rp); err != nil {
		return err
	}
	rp.setDefaults()
	return rp.validate()
}

func (rp *RunParameters) setDefaults() {
	if rp.Dim == 0 {
		rp.Dim = 2
	}
	if rp.MeshCells == 0 {
		rp.MeshCells = 4
	}
	if rp.PolynomialOrder == 0 {
		rp.PolynomialOrder = 4
	}
	if rp.Preconditioner == "" {
		rp.Preconditioner = "FDM"
	}
	if rp.CoarseDegree == 0 {
		rp.CoarseDegree = 1
	}
	if rp.Tolerance == 0 {
		rp.Tolerance = 1.e-08
	}
	if rp.MaxIterations == 0 {
		rp.MaxIterations = 100
	}
	if rp.Beta == 0 {
		rp.Beta = 1
	}
}

func (rp *RunParameters) validate() error {
	switch rp.Preconditioner {
	case "FDM", "PMG":
	default:
		return fmt.Errorf("unknown preconditioner [%s], expected FDM or PMG", rp.Preconditioner)
	}
	if rp.Dim < 1 || rp.Dim > 3 {
		return fmt.Errorf("dimension must be 1, 2 or 3, got %d", rp.Dim)
	}
	if rp.PolynomialOrder < 1 {
		return fmt.Errorf("polynomial order must be at least 1, got %d", rp.PolynomialOrder)
	}
	return nil
}

// AlphaDiag returns the per-axis diffusivity, defaulting to unit.
func (rp *RunParameters) AlphaDiag() (diag []float64) {
	diag = make([]float64, rp.Dim)
	for d := range diag {
		diag[d] = 1
		if v, ok := rp.Alpha[fmt.Sprintf("x%d", d)]; ok {
			diag[d] = v
		}
	}
	return
}

func (rp *RunParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", rp.Title)
	fmt.Printf("[%d]\t\t\t\t= Dim\n", rp.Dim)
	fmt.Printf("[%d]\t\t\t\t= MeshCells\n", rp.MeshCells)
	fmt.Printf("[%d]\t\t\t\t= Polynomial Order\n", rp.PolynomialOrder)
	fmt.Printf("[%s]\t\t\t= Preconditioner\n", rp.Preconditioner)
	fmt.Printf("[%d]\t\t\t\t= Coarse Degree\n", rp.CoarseDegree)
	fmt.Printf("%v\t\t\t= Condense\n", rp.Condense)
	fmt.Printf("%v\t\t\t= Diagonal Scaling\n", rp.DiagonalScaling)
	fmt.Printf("%v\t\t\t= Interior Penalty\n", rp.InteriorPenalty)
	fmt.Printf("%8.5f\t\t= Tolerance\n", rp.Tolerance)
	fmt.Printf("[%d]\t\t\t\t= Max Iterations\n", rp.MaxIterations)
	keys := make([]string, 0, len(rp.Alpha))
	for k := range rp.Alpha {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Alpha[%s] = %v\n", key, rp.Alpha[key])
	}
	fmt.Printf("%8.5f\t\t= Beta\n", rp.Beta)
}
