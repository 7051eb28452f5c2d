/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"time"

	"github.com/notargets/fastdiag/config"
	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/fdm"
	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/grid"
	"github.com/notargets/fastdiag/pmg"
	"github.com/notargets/fastdiag/solver"
	"github.com/notargets/fastdiag/space"

	"github.com/spf13/cobra"
)

type SolveModel struct {
	ParamFile string
	N         int // polynomial degree override
	K         int // cells per axis override
	Dim       int
}

// solveCmd represents the solve command
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Riesz-map benchmark solve over a Cartesian mesh",
	Long: `
Assembles the fast diagonalization preconditioner for an anisotropic
Riesz map on a Cartesian tensor-product mesh and runs a preconditioned
conjugate gradient solve,

fastdiag solve -I benchmark.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		sm := &SolveModel{}
		sm.ParamFile, _ = cmd.Flags().GetString("inputConditionsFile")
		sm.N, _ = cmd.Flags().GetInt("n")
		sm.K, _ = cmd.Flags().GetInt("k")
		sm.Dim, _ = cmd.Flags().GetInt("dim")
		rp := processSolveInput(sm)
		if err := RunSolve(rp); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file with run parameters")
	solveCmd.Flags().IntP("n", "n", 0, "polynomial degree, overrides the input file")
	solveCmd.Flags().IntP("k", "k", 0, "number of cells per axis, overrides the input file")
	solveCmd.Flags().IntP("dim", "d", 0, "spatial dimension, overrides the input file")
}

func processSolveInput(sm *SolveModel) (rp *config.RunParameters) {
	var (
		err  error
		data []byte
	)
	rp = &config.RunParameters{}
	if len(sm.ParamFile) != 0 {
		if data, err = ioutil.ReadFile(sm.ParamFile); err != nil {
			panic(err)
		}
	} else {
		exampleFile := `
########################################
Title: "Poisson Benchmark"
Dim: 2
MeshCells: 8
PolynomialOrder: 5
Preconditioner: PMG # Can be "FDM"
Tolerance: 1.e-08
########################################
`
		fmt.Printf("no input file given, using defaults. Example File:%s\n", exampleFile)
		data = []byte("Title: \"Poisson Benchmark\"")
	}
	if err = rp.Parse(data); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	if sm.N != 0 {
		rp.PolynomialOrder = sm.N
	}
	if sm.K != 0 {
		rp.MeshCells = sm.K
	}
	if sm.Dim != 0 {
		rp.Dim = sm.Dim
	}
	return
}

// RunSolve assembles the requested preconditioner and drives the
// conjugate gradient solve, printing a run summary.
func RunSolve(rp *config.RunParameters) (err error) {
	rp.Print()
	var (
		mesh = grid.NewUnitMesh(rp.Dim, rp.MeshCells)
		elem element.Element
	)
	elem = element.Lagrange{P: rp.PolynomialOrder, D: rp.Dim, Var: element.FDMVariant}
	if rp.InteriorPenalty {
		elem = element.Broken{Sub: elem}
	}
	var (
		V = space.NewFunctionSpace(mesh, elem)
		f = form.NewRieszMap(V,
			form.ConstantTensor(rp.AlphaDiag()),
			form.ConstantTensor([]float64{rp.Beta}), rp.InteriorPenalty)
		bcs  = []*space.DirichletBC{space.NewDirichletBC(V)}
		opts = fdm.Options{
			Condense:        rp.Condense,
			DiagonalScaling: rp.DiagonalScaling,
			PenaltyEta:      rp.PenaltyEta,
		}
		pc solver.Preconditioner
		op solver.Operator
	)
	fmt.Printf("DOFs: %d, cells: %d\n", V.NumDOFs(), mesh.NumCells())

	start := time.Now()
	switch {
	case rp.InteriorPenalty:
		p := fdm.NewPoissonFDMPC(f, bcs, opts)
		if err = p.Initialize(); err != nil {
			return
		}
		pc, op = p, p.P
	case rp.Preconditioner == "PMG":
		var mg *pmg.PMG
		if mg, err = pmg.NewPMG(f, bcs, pmg.Options{CoarseDegree: rp.CoarseDegree, FDM: opts}); err != nil {
			return
		}
		pc, op = mg, mg.Operator().P
	default:
		p := fdm.NewFDMPC(f, bcs, opts)
		if err = p.Initialize(); err != nil {
			return
		}
		pc, op = p, p.P
	}
	fmt.Printf("setup time: %v\n", time.Since(start))

	b := make([]float64, V.NumDOFs())
	for i := range b {
		b[i] = math.Sin(float64(2*i + 1))
	}
	start = time.Now()
	_, iters, err := solver.CG(op, b, pc, rp.Tolerance, rp.MaxIterations)
	if err != nil {
		return
	}
	fmt.Printf("converged in %d iterations, solve time: %v\n", iters, time.Since(start))
	return nil
}
