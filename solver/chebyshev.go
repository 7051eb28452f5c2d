package solver

import (
	"fmt"
)

// Chebyshev is a polynomial smoother over the preconditioned operator
// M^-1 A, targeting the eigenvalue interval [LMin, LMax].
type Chebyshev struct {
	A     Operator
	M     Preconditioner
	LMin  float64
	LMax  float64
	Steps int
}

func NewChebyshev(A Operator, M Preconditioner, lmin, lmax float64, steps int) (*Chebyshev, error) {
	if lmin <= 0 || lmax <= lmin {
		return nil, fmt.Errorf("invalid eigenvalue bounds [%v, %v]", lmin, lmax)
	}
	if steps < 1 {
		return nil, fmt.Errorf("smoother needs at least one step, got %d", steps)
	}
	return &Chebyshev{A: A, M: M, LMin: lmin, LMax: lmax, Steps: steps}, nil
}

// Smooth improves x in place toward the solution of A x = b using the
// standard three term Chebyshev recurrence.
func (ch *Chebyshev) Smooth(b, x []float64) (err error) {
	var (
		n     = len(b)
		theta = 0.5 * (ch.LMax + ch.LMin)
		delta = 0.5 * (ch.LMax - ch.LMin)
		sigma = theta / delta
		rhoP  = 1 / sigma
		r     = make([]float64, n)
		d     = make([]float64, n)
		q     = make([]float64, n)
		z     []float64
	)
	ch.A.MulVec(x, r)
	for i := 0; i < n; i++ {
		r[i] = b[i] - r[i]
	}
	if z, err = ch.M.Apply(r); err != nil {
		return
	}
	for i := 0; i < n; i++ {
		d[i] = z[i] / theta
	}
	for k := 0; k < ch.Steps; k++ {
		for i := 0; i < n; i++ {
			x[i] += d[i]
		}
		if k == ch.Steps-1 {
			break
		}
		ch.A.MulVec(d, q)
		for i := 0; i < n; i++ {
			r[i] -= q[i]
		}
		if z, err = ch.M.Apply(r); err != nil {
			return
		}
		rho := 1 / (2*sigma - rhoP)
		for i := 0; i < n; i++ {
			d[i] = rho*rhoP*d[i] + 2*rho/delta*z[i]
		}
		rhoP = rho
	}
	return
}
