package element

import (
	"fmt"

	"github.com/notargets/fastdiag/utils"

	"gonum.org/v1/gonum/mat"
)

// FDMBasis is the Lobatto Lagrange basis transformed so that the interior
// functions simultaneously diagonalize the interval mass and stiffness
// matrices. Vertex functions stay nodal, so function 0 and function P are
// the only ones with endpoint support.
type FDMBasis struct {
	LineBasis
	S utils.Matrix // change of basis, columns in nodal coordinates
}

// NewFDMBasis solves the interior generalized eigenproblem
// A v = lambda B v on the Lobatto Lagrange basis of degree p and uses the
// B-orthonormal eigenvectors as the interior basis functions.
func NewFDMBasis(p int) (fb FDMBasis) {
	lb := NewLobattoBasis(p)
	n := lb.NumFunctions()
	S := utils.NewIdentity(n)
	if p > 1 {
		var (
			interior = utils.NewRange(1, p)
			Ahat     = lb.StiffnessMatrix()
			Bhat     = lb.MassMatrix()
			Aii      = Ahat.SliceRows(interior).SliceCols(interior)
			Bii      = Bhat.SliceRows(interior).SliceCols(interior)
			ni       = p - 1
		)
		V := generalizedEig(Aii, Bii, ni)
		for j := 0; j < ni; j++ {
			for i := 0; i < ni; i++ {
				S.M.Set(1+i, 1+j, V.At(i, j))
			}
		}
	}
	S.SetReadOnly("FDMBasis.S")
	return FDMBasis{LineBasis: lb, S: S}
}

// generalizedEig returns B-orthonormal eigenvectors of A v = lambda B v
// for symmetric A and SPD B, by Cholesky whitening.
func generalizedEig(A, B utils.Matrix, n int) (V utils.Matrix) {
	Bs := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			Bs.SetSym(i, j, 0.5*(B.At(i, j)+B.At(j, i)))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(Bs); !ok {
		panic(fmt.Errorf("interval mass matrix is not positive definite"))
	}
	L := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(L)

	// C = L^-1 A L^-T
	T1 := mat.NewDense(n, n, nil)
	if err := T1.Solve(L, A.M); err != nil {
		panic(fmt.Errorf("unable to whiten eigenproblem: %v", err))
	}
	C := mat.NewDense(n, n, nil)
	if err := C.Solve(L, T1.T()); err != nil {
		panic(fmt.Errorf("unable to whiten eigenproblem: %v", err))
	}
	Cs := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			Cs.SetSym(i, j, 0.5*(C.At(i, j)+C.At(j, i)))
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(Cs, true); !ok {
		panic("eigenvalue decomposition failed")
	}
	Y := mat.NewDense(n, n, nil)
	eig.VectorsTo(Y)

	V = utils.NewMatrix(n, n)
	if err := V.M.Solve(L.T(), Y); err != nil {
		panic(fmt.Errorf("unable to recover eigenvectors: %v", err))
	}
	return
}

// Tabulate evaluates the transformed basis and its derivatives.
func (fb FDMBasis) Tabulate(X utils.Vector) (V, D utils.Matrix) {
	Vn, Dn := fb.LineBasis.Tabulate(X)
	return Vn.Mul(fb.S), Dn.Mul(fb.S)
}

func (fb FDMBasis) MassMatrix() utils.Matrix {
	B := fb.LineBasis.MassMatrix()
	return fb.S.Transpose().Mul(B).Mul(fb.S)
}

func (fb FDMBasis) StiffnessMatrix() utils.Matrix {
	A := fb.LineBasis.StiffnessMatrix()
	return fb.S.Transpose().Mul(A).Mul(fb.S)
}

// IPDGTables carries the 1D interval matrices needed to assemble the
// interior penalty form as Kronecker products.
type IPDGTables struct {
	P      int
	Ahat   [4]utils.CSR // stiffness, indexed by the two-bit facet bc mask
	Bhat   utils.CSR    // mass, sparsified to diagonal plus vertex block
	Dfacet utils.Matrix // outward normal derivative of each function at the endpoints
	BDof   utils.Index  // functions with endpoint support
}

const SparseTol = 1.e-10

// FDMSetupIPDG builds the interval stiffness variants for weakly imposed
// Dirichlet conditions. Bit j of the bc mask selects the weak condition at
// endpoint j: the normal-derivative coupling row and column of the
// corresponding vertex function are subtracted and the penalty eta is
// added on its diagonal entry.
func FDMSetupIPDG(fb FDMBasis, eta float64) (tab IPDGTables) {
	var (
		p    = fb.P
		n    = fb.NumFunctions()
		bdof = utils.Index{0, p}
	)
	X, W := GaussRule(p + 1)
	Jhat, Dhat := fb.Tabulate(X)
	Ahat := weightedGram(Dhat, Dhat, W)
	Bhat := weightedGram(Jhat, Jhat, W)

	// outward normal derivatives: -d/dx at the left endpoint
	ends := utils.NewVector(2, []float64{-1, 1})
	_, Dend := fb.Tabulate(ends)
	Dfacet := utils.NewMatrix(n, 2)
	for i := 0; i < n; i++ {
		Dfacet.M.Set(i, 0, -Dend.At(0, i))
		Dfacet.M.Set(i, 1, Dend.At(1, i))
	}

	tab = IPDGTables{P: p, Dfacet: Dfacet, BDof: bdof}
	for bc := 0; bc < 4; bc++ {
		A := Ahat.Copy()
		for j := 0; j < 2; j++ {
			if bc&(1<<j) == 0 {
				continue
			}
			b := bdof[j]
			for i := 0; i < n; i++ {
				A.Set(i, b, A.At(i, b)-Dfacet.At(i, j))
				A.Set(b, i, A.At(b, i)-Dfacet.At(i, j))
			}
			A.Set(b, b, A.At(b, b)+eta)
		}
		tab.Ahat[bc] = utils.NewCSRFromDense(A, SparseTol)
	}
	tab.Bhat = sparsifyMass(Bhat, bdof)
	return
}

// sparsifyMass keeps the diagonal of B plus the coupling block between the
// vertex functions, discarding the small vertex-interior moments.
func sparsifyMass(B utils.Matrix, bdof utils.Index) utils.CSR {
	var (
		n, _ = B.Dims()
	)
	S := utils.NewMatrix(n, n)
	for i := 0; i < n; i++ {
		S.M.Set(i, i, B.At(i, i))
	}
	for _, i := range bdof {
		for _, j := range bdof {
			S.M.Set(i, j, B.At(i, j))
		}
	}
	return utils.NewCSRFromDense(S, SparseTol)
}
