package element

import (
	"fmt"

	"github.com/notargets/fastdiag/utils"
)

// LineBasis is a nodal Lagrange basis on the reference interval [-1,1].
type LineBasis struct {
	P     int          // polynomial degree
	Nodes utils.Vector // P+1 interpolation nodes in ascending order
}

// NewLobattoBasis returns the degree p Lagrange basis on the
// Gauss-Lobatto-Legendre points, vertex nodes first and last.
func NewLobattoBasis(p int) (lb LineBasis) {
	if p < 1 {
		panic(fmt.Errorf("continuous line basis needs degree >= 1, got %d", p))
	}
	X, _ := LobattoRule(p + 1)
	return LineBasis{P: p, Nodes: X}
}

// NewGaussBasis returns the degree p Lagrange basis on the interior
// Gauss-Legendre points, used as the discontinuous companion basis.
func NewGaussBasis(p int) (lb LineBasis) {
	if p < 0 {
		panic(fmt.Errorf("negative degree %d in NewGaussBasis", p))
	}
	X, _ := GaussRule(p + 1)
	return LineBasis{P: p, Nodes: X}
}

func (lb LineBasis) NumFunctions() int { return lb.P + 1 }

// Tabulate evaluates the basis functions and their first derivatives at
// the given points. V(i,j) = l_j(x_i), D(i,j) = l_j'(x_i).
func (lb LineBasis) Tabulate(X utils.Vector) (V, D utils.Matrix) {
	var (
		np = X.Len()
		nb = lb.NumFunctions()
		xn = lb.Nodes.Data()
	)
	V = utils.NewMatrix(np, nb)
	D = utils.NewMatrix(np, nb)
	for i := 0; i < np; i++ {
		x := X.AtVec(i)
		for j := 0; j < nb; j++ {
			var (
				val  = 1.
				dval float64
			)
			for m := 0; m < nb; m++ {
				if m == j {
					continue
				}
				// product rule term omitting factor m
				term := 1. / (xn[j] - xn[m])
				for k := 0; k < nb; k++ {
					if k == j || k == m {
						continue
					}
					term *= (x - xn[k]) / (xn[j] - xn[k])
				}
				dval += term
				val *= (x - xn[m]) / (xn[j] - xn[m])
			}
			V.M.Set(i, j, val)
			D.M.Set(i, j, dval)
		}
	}
	return
}

// MassMatrix computes the interval mass matrix of the basis by
// Gauss-Legendre quadrature exact for degree 2P.
func (lb LineBasis) MassMatrix() (B utils.Matrix) {
	X, W := GaussRule(lb.P + 1)
	J, _ := lb.Tabulate(X)
	return weightedGram(J, J, W)
}

// StiffnessMatrix computes the interval stiffness matrix of the basis.
func (lb LineBasis) StiffnessMatrix() (A utils.Matrix) {
	X, W := GaussRule(lb.P + 1)
	_, D := lb.Tabulate(X)
	return weightedGram(D, D, W)
}

// Moments computes the matrix M(i,j) = integral of rowBasis_i times
// colBasis_j (or its derivative when dcol is set) over [-1,1].
func Moments(rowBasis, colBasis LineBasis, dcol bool) (M utils.Matrix) {
	npts := (rowBasis.P+colBasis.P)/2 + 1
	X, W := GaussRule(npts)
	Jr, _ := rowBasis.Tabulate(X)
	Jc, Dc := colBasis.Tabulate(X)
	if dcol {
		Jc = Dc
	}
	return weightedGram(Jr, Jc, W)
}

// weightedGram forms A^T diag(w) B for tabulations with points as rows.
func weightedGram(A, B utils.Matrix, W utils.Vector) (G utils.Matrix) {
	var (
		np, na = A.Dims()
		_, nb  = B.Dims()
	)
	G = utils.NewMatrix(na, nb)
	for q := 0; q < np; q++ {
		w := W.AtVec(q)
		for i := 0; i < na; i++ {
			aw := w * A.At(q, i)
			if aw == 0 {
				continue
			}
			for j := 0; j < nb; j++ {
				G.M.Set(i, j, G.At(i, j)+aw*B.At(q, j))
			}
		}
	}
	return
}
