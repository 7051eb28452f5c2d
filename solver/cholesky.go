// Package solver holds the inner linear algebra the preconditioner
// delegates to: a dense Cholesky for the inner and terminal coarse
// solves, preconditioned conjugate gradients, and a Chebyshev smoother.
package solver

import (
	"fmt"

	"github.com/notargets/fastdiag/utils"

	"gonum.org/v1/gonum/mat"
)

// Cholesky is a dense symmetric positive definite factorization.
type Cholesky struct {
	chol mat.Cholesky
	n    int
}

func NewCholesky(A utils.Matrix) (c *Cholesky, err error) {
	var (
		nr, nc = A.Dims()
	)
	if nr != nc {
		return nil, fmt.Errorf("cannot factor a %dx%d matrix", nr, nc)
	}
	S := mat.NewSymDense(nr, nil)
	for i := 0; i < nr; i++ {
		for j := i; j < nr; j++ {
			S.SetSym(i, j, 0.5*(A.At(i, j)+A.At(j, i)))
		}
	}
	c = &Cholesky{n: nr}
	if ok := c.chol.Factorize(S); !ok {
		return nil, fmt.Errorf("matrix is not positive definite")
	}
	return c, nil
}

func (c *Cholesky) Solve(b []float64) (x []float64, err error) {
	if len(b) != c.n {
		return nil, fmt.Errorf("dimension mismatch in Cholesky solve: n = %d, len(b) = %d", c.n, len(b))
	}
	var xv mat.VecDense
	if err = c.chol.SolveVecTo(&xv, mat.NewVecDense(c.n, b)); err != nil {
		return nil, fmt.Errorf("Cholesky solve failed: %v", err)
	}
	x = make([]float64, c.n)
	copy(x, xv.RawVector().Data)
	return
}
