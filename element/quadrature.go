package element

import (
	"math"

	"github.com/notargets/fastdiag/utils"

	"gonum.org/v1/gonum/mat"
)

// JacobiGQ computes the Nth order Gauss quadrature points and weights
// associated with the Jacobi polynomial of type (alpha, beta) via the
// Golub-Welsch eigenvalue method.
func JacobiGQ(alpha, beta float64, N int) (X, W utils.Vector) {
	var (
		x, w       []float64
		fac        float64
		h1, d0, d1 []float64
		VVr        *mat.Dense
	)
	if N == 0 {
		x = []float64{-(alpha - beta) / (alpha + beta + 2.)}
		w = []float64{2.}
		return utils.NewVector(len(x), x), utils.NewVector(len(w), w)
	}

	h1 = make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal: diag(-1/2*(alpha^2-beta^2)./(h1+2)./h1)
	d0 = make([]float64, N+1)
	fac = -.5 * (alpha*alpha - beta*beta)
	for i := 0; i < N+1; i++ {
		val := h1[i]
		d0[i] = fac / (val * (val + 2.))
	}
	// Handle division by zero
	eps := 1.e-16
	if alpha+beta < 10*eps {
		d0[0] = 0.
	}

	// 1st upper diagonal
	var ip1 float64
	d1 = make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 = float64(i + 1)
		val := h1[i]
		d1[i] = 2. / (val + 2.)
		d1[i] *= math.Sqrt(ip1 * (ip1 + alpha + beta) * (ip1 + alpha) * (ip1 + beta) / ((val + 1.) * (val + 3.)))
	}

	JJ := utils.NewSymTriDiagonal(d0, d1)

	var eig mat.EigenSym
	ok := eig.Factorize(JJ, true)
	if !ok {
		panic("eigenvalue decomposition failed")
	}
	x = eig.Values(x)
	X = utils.NewVector(N+1, x)

	VVr = mat.NewDense(len(x), len(x), nil)
	eig.VectorsTo(VVr)
	W = utils.NewVector(len(x), VVr.RawRowView(0)).POW(2).Scale(gamma0(alpha, beta))
	return X, W
}

// JacobiGL computes the N+1 Gauss-Lobatto-Legendre points, including the
// endpoints -1 and 1, together with the GLL quadrature weights
// w_i = 2 / (N (N+1) P_N(x_i)^2).
func JacobiGL(alpha, beta float64, N int) (X, W utils.Vector) {
	var (
		x    = make([]float64, N+1)
		xint utils.Vector
	)
	if N == 1 {
		x[0], x[1] = -1, 1
		return utils.NewVector(N+1, x), utils.NewVector(N+1, []float64{1, 1})
	}
	xint, _ = JacobiGQ(alpha+1, beta+1, N-2)
	x[0] = -1
	x[N] = 1
	dataXint := xint.Data()
	for i := 1; i < N; i++ {
		x[i] = dataXint[i-1]
	}
	w := make([]float64, N+1)
	fac := 2. / (float64(N) * float64(N+1))
	for i := range x {
		p := LegendreP(x[i], N)
		w[i] = fac / (p * p)
	}
	return utils.NewVector(N+1, x), utils.NewVector(N+1, w)
}

// LegendreP evaluates the degree N Legendre polynomial at x by the
// three term recurrence.
func LegendreP(x float64, N int) (p float64) {
	var (
		pm1, pm2 = 1., 0.
	)
	if N == 0 {
		return 1
	}
	for n := 1; n <= N; n++ {
		fn := float64(n)
		p = ((2*fn-1)*x*pm1 - (fn-1)*pm2) / fn
		pm2, pm1 = pm1, p
	}
	return
}

func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	a1 := alpha + 1.
	b1 := beta + 1.
	return math.Gamma(a1) * math.Gamma(b1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// GaussRule returns the npts point Gauss-Legendre rule on [-1,1].
func GaussRule(npts int) (X, W utils.Vector) {
	if npts < 1 {
		panic("quadrature rule needs at least one point")
	}
	return JacobiGQ(0, 0, npts-1)
}

// LobattoRule returns the npts point Gauss-Lobatto-Legendre rule on [-1,1].
func LobattoRule(npts int) (X, W utils.Vector) {
	if npts < 2 {
		panic("Lobatto rule needs at least two points")
	}
	return JacobiGL(0, 0, npts-1)
}
