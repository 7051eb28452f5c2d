package solver

import (
	"fmt"
	"math"
)

// Operator applies a square linear operator, y = A x.
type Operator interface {
	MulVec(x, y []float64)
}

// Preconditioner applies an approximate inverse.
type Preconditioner interface {
	Apply(x []float64) ([]float64, error)
}

// CG runs preconditioned conjugate gradients from the zero vector until
// the preconditioned residual drops below tol relative to its initial
// value, or maxiter iterations elapse.
func CG(A Operator, b []float64, M Preconditioner, tol float64, maxiter int) (x []float64, iters int, err error) {
	var (
		n = len(b)
		r = make([]float64, n)
		z []float64
		p = make([]float64, n)
		q = make([]float64, n)
	)
	x = make([]float64, n)
	copy(r, b)
	if z, err = M.Apply(r); err != nil {
		return
	}
	rz := dot(r, z)
	rz0 := math.Abs(rz)
	if rz0 == 0 {
		return
	}
	copy(p, z)
	for iters = 1; iters <= maxiter; iters++ {
		A.MulVec(p, q)
		pq := dot(p, q)
		if pq <= 0 {
			err = fmt.Errorf("operator lost positive definiteness at iteration %d: p.Ap = %v", iters, pq)
			return
		}
		alpha := rz / pq
		for i := 0; i < n; i++ {
			x[i] += alpha * p[i]
			r[i] -= alpha * q[i]
		}
		if z, err = M.Apply(r); err != nil {
			return
		}
		rzNew := dot(r, z)
		if math.Abs(rzNew) <= tol*tol*rz0 {
			return
		}
		beta := rzNew / rz
		rz = rzNew
		for i := 0; i < n; i++ {
			p[i] = z[i] + beta*p[i]
		}
	}
	err = fmt.Errorf("no convergence in %d iterations", maxiter)
	return
}

func dot(a, b []float64) (d float64) {
	for i, v := range a {
		d += v * b[i]
	}
	return
}

// Identity is the trivial preconditioner.
type Identity struct{}

func (Identity) Apply(x []float64) ([]float64, error) {
	y := make([]float64, len(x))
	copy(y, x)
	return y, nil
}
