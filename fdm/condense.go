package fdm

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/fastdiag/utils"

	"gonum.org/v1/gonum/mat"
)

// SortInteriorDOFs orders the interior index set so that the coupling
// blocks of A[i0,i0] become contiguous and appear in increasing block
// size, single DOFs first. Returns the permutation into i0.
func SortInteriorDOFs(A utils.CSR, i0 utils.Index) (perm utils.Index) {
	var (
		A00 = A.SliceRows(i0).SliceCols(i0)
		n   = len(i0)
		raw = A00.RawMatrix()
	)
	// connected components of the symmetrized coupling graph
	comp := make([]int, n)
	for i := range comp {
		comp[i] = -1
	}
	var comps [][]int
	for seed := 0; seed < n; seed++ {
		if comp[seed] >= 0 {
			continue
		}
		id := len(comps)
		stack := []int{seed}
		comp[seed] = id
		var members []int
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, i)
			for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
				j := raw.Ind[k]
				if comp[j] < 0 {
					comp[j] = id
					stack = append(stack, j)
				}
			}
		}
		sort.Ints(members)
		comps = append(comps, members)
	}
	sort.SliceStable(comps, func(a, b int) bool { return len(comps[a]) < len(comps[b]) })
	perm = make(utils.Index, 0, n)
	for _, members := range comps {
		perm = append(perm, members...)
	}
	return
}

// FactorInteriorMat replaces the block-diagonal matrix with the inverse
// lower Cholesky factor of each block, so that A00^-1 = L^T L with L the
// returned matrix. Single-entry blocks reduce to a reciprocal square
// root. The input must be block diagonal with contiguous blocks; that is
// an invariant of the sorted interior ordering, not a runtime condition.
func FactorInteriorMat(A00 utils.CSR) (L utils.CSR, err error) {
	var (
		n, _ = A00.Dims()
		raw  = A00.RawMatrix()
		ia   = make([]int, 1, n+1)
		ja   []int
		data []float64
	)
	for start := 0; start < n; {
		// block extent: grow until no row inside reaches past the end
		end := start + 1
		for i := start; i < end; i++ {
			for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
				j := raw.Ind[k]
				if j < start {
					panic(fmt.Errorf("interior matrix is not block diagonal at row %d", i))
				}
				if j+1 > end {
					end = j + 1
				}
			}
		}
		bs := end - start
		if bs == 1 {
			a := A00.At(start, start)
			if a <= 0 {
				return L, fmt.Errorf("interior block factorization failed: nonpositive pivot %v at dof %d", a, start)
			}
			ja = append(ja, start)
			data = append(data, 1/math.Sqrt(a))
			ia = append(ia, len(ja))
		} else {
			B := mat.NewSymDense(bs, nil)
			for i := 0; i < bs; i++ {
				for j := i; j < bs; j++ {
					B.SetSym(i, j, 0.5*(A00.At(start+i, start+j)+A00.At(start+j, start+i)))
				}
			}
			var chol mat.Cholesky
			if ok := chol.Factorize(B); !ok {
				return L, fmt.Errorf("interior block factorization failed: block at dof %d size %d is not positive definite", start, bs)
			}
			Lb := mat.NewTriDense(bs, mat.Lower, nil)
			chol.LTo(Lb)
			invL := mat.NewDense(bs, bs, nil)
			if serr := invL.Solve(Lb, eyeDense(bs)); serr != nil {
				return L, fmt.Errorf("interior block factorization failed: %v", serr)
			}
			for i := 0; i < bs; i++ {
				for j := 0; j <= i; j++ {
					ja = append(ja, start+j)
					data = append(data, invL.At(i, j))
				}
				ia = append(ia, len(ja))
			}
		}
		start = end
	}
	L = utils.NewCSR(n, n, ia, ja, data)
	return
}

func eyeDense(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// Condense eliminates the interior set i0 from the symmetric element
// matrix, returning the Schur complement A11 - A10 A00^-1 A01 on the
// retained set i1.
func Condense(A utils.CSR, i0, i1 utils.Index) (S utils.CSR, err error) {
	perm := SortInteriorDOFs(A, i0)
	i0s := i0.Subset(perm)
	var (
		A00 = A.SliceRows(i0s).SliceCols(i0s)
		A01 = A.SliceRows(i0s).SliceCols(i1)
		A11 = A.SliceRows(i1).SliceCols(i1)
	)
	L, err := FactorInteriorMat(A00)
	if err != nil {
		return
	}
	X := L.Mul(A01) // inv(chol) A01
	S = A11.AddScaled(-1, X.Transpose().Mul(X))
	return
}
