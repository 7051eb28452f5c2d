package pmg

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/fastdiag/fdm"
	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/solver"
	"github.com/notargets/fastdiag/space"
)

// Options configures the hierarchy build.
type Options struct {
	CoarseDegree int         // degree floor, default 1
	SmoothSteps  int         // Chebyshev steps per smoothing pass, default 2
	FDM          fdm.Options // per-level assembly options
}

// PMG is the V-cycle preconditioner over the degree hierarchy: a fast
// diagonalization preconditioner smooths every level, the terminal
// level is solved directly.
type PMG struct {
	levels    []*Level
	ops       []*fdm.FDMPC
	transfers []*TransferOperator
	smoothers []*solver.Chebyshev
	coarse    *solver.Cholesky
}

// NewPMG coarsens the form level by level until the degree floor,
// assembling the level operators and smoothers on the way down.
func NewPMG(f *form.Form, bcs []*space.DirichletBC, opts Options) (mg *PMG, err error) {
	if opts.SmoothSteps < 1 {
		opts.SmoothSteps = 2
	}
	mg = &PMG{}
	lvl := NewLevel(f, bcs, opts.CoarseDegree)
	for {
		pc := fdm.NewFDMPC(lvl.Form, lvl.BCs, opts.FDM)
		if err = pc.Initialize(); err != nil {
			return nil, fmt.Errorf("level assembly at degree %d failed: %v", lvl.Space.Elem.Degree(), err)
		}
		mg.levels = append(mg.levels, lvl)
		mg.ops = append(mg.ops, pc)

		child, T, cerr := lvl.Coarsen()
		if cerr != nil {
			if errors.Is(cerr, ErrNoCoarsening) {
				break // terminal level reached
			}
			return nil, fmt.Errorf("coarsening at degree %d failed: %v", lvl.Space.Elem.Degree(), cerr)
		}
		mg.transfers = append(mg.transfers, T)
		lvl = child
	}
	for k := 0; k+1 < len(mg.levels); k++ {
		lmax := estimateLambdaMax(mg.ops[k].P, mg.ops[k], 10)
		ch, serr := solver.NewChebyshev(mg.ops[k].P, mg.ops[k], lmax/4, 1.1*lmax, opts.SmoothSteps)
		if serr != nil {
			return nil, serr
		}
		mg.smoothers = append(mg.smoothers, ch)
	}
	last := mg.ops[len(mg.ops)-1]
	if mg.coarse, err = solver.NewCholesky(last.P.Dense()); err != nil {
		return nil, fmt.Errorf("terminal factorization failed: %v", err)
	}
	return mg, nil
}

// Levels exposes the hierarchy for inspection.
func (mg *PMG) Levels() []*Level { return mg.levels }

// Operator returns the finest assembled operator.
func (mg *PMG) Operator() *fdm.FDMPC { return mg.ops[0] }

// Apply runs one V-cycle on the residual, implementing the
// preconditioner surface.
func (mg *PMG) Apply(b []float64) ([]float64, error) {
	return mg.vcycle(0, b)
}

func (mg *PMG) vcycle(k int, b []float64) (x []float64, err error) {
	if k == len(mg.levels)-1 {
		return mg.coarse.Solve(b)
	}
	var (
		A = mg.ops[k].P
		n = len(b)
		r = make([]float64, n)
	)
	x = make([]float64, n)
	if err = mg.smoothers[k].Smooth(b, x); err != nil {
		return
	}
	A.MulVec(x, r)
	for i := range r {
		r[i] = b[i] - r[i]
	}
	rc := make([]float64, mg.levels[k+1].Space.NumDOFs())
	if err = mg.transfers[k].Restrict(r, rc); err != nil {
		return
	}
	ec, err := mg.vcycle(k+1, rc)
	if err != nil {
		return
	}
	e := make([]float64, n)
	if err = mg.transfers[k].Prolong(ec, e); err != nil {
		return
	}
	for i := range x {
		x[i] += e[i]
	}
	if err = mg.smoothers[k].Smooth(b, x); err != nil {
		return
	}
	return x, nil
}

// estimateLambdaMax runs a few power iterations on the preconditioned
// operator to bound the smoothing interval.
func estimateLambdaMax(A solver.Operator, M solver.Preconditioner, iters int) (lmax float64) {
	n := 0
	if G, ok := A.(*fdm.GlobalMatrix); ok {
		n = G.NRows
	}
	if n == 0 {
		return 2
	}
	var (
		x = make([]float64, n)
		y = make([]float64, n)
	)
	for i := range x {
		x[i] = math.Sin(float64(i + 1))
	}
	lmax = 1
	for it := 0; it < iters; it++ {
		A.MulVec(x, y)
		z, err := M.Apply(y)
		if err != nil {
			return 2
		}
		num, den := dot(x, z), dot(x, x)
		if den == 0 {
			return 2
		}
		lmax = num / den
		nrm := math.Sqrt(dot(z, z))
		if nrm == 0 {
			return 2
		}
		for i := range x {
			x[i] = z[i] / nrm
		}
	}
	return lmax
}
