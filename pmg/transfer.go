package pmg

import (
	"fmt"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/space"
	"github.com/notargets/fastdiag/utils"
)

// Arena holds the two fixed-size scratch regions of the Kronecker
// kernel. The kernel ping-pongs between the slots and reports which one
// carries the result; the arena is reused across cells and is not
// reentrant.
type Arena struct {
	work [2][]float64
}

func NewArena(n int) *Arena {
	return &Arena{work: [2][]float64{make([]float64, n), make([]float64, n)}}
}

// kronmxv computes y = kron(J[0], ..., J[dim-1]) x with axis 0 slowest,
// or the transpose product when trans is set. The input is copied into
// the arena, one axis is contracted per pass, and the slot holding the
// final result is returned explicitly.
func kronmxv(trans bool, J []utils.Matrix, x []float64, a *Arena) (y []float64, slot int) {
	var (
		dim   = len(J)
		shape = make([]int, dim)
		total = 1
	)
	for d, Jd := range J {
		nr, nc := Jd.Dims()
		if trans {
			nr, nc = nc, nr
		}
		shape[d] = nc
		total *= nc
	}
	if total != len(x) {
		panic(fmt.Errorf("input length %d does not match the factor shapes", len(x)))
	}
	copy(a.work[0], x)
	for d := 0; d < dim; d++ {
		var (
			Jd     = J[d]
			nr, nc = Jd.Dims()
		)
		if trans {
			nr, nc = nc, nr
		}
		pre, post := 1, 1
		for e := 0; e < d; e++ {
			pre *= shape[e]
		}
		for e := d + 1; e < dim; e++ {
			post *= shape[e]
		}
		src, dst := a.work[slot], a.work[1-slot]
		for ip := 0; ip < pre; ip++ {
			for i := 0; i < nr; i++ {
				for jp := 0; jp < post; jp++ {
					var sum float64
					for j := 0; j < nc; j++ {
						var v float64
						if trans {
							v = Jd.At(j, i)
						} else {
							v = Jd.At(i, j)
						}
						sum += v * src[(ip*nc+j)*post+jp]
					}
					dst[(ip*nr+i)*post+jp] = sum
				}
			}
		}
		shape[d] = nr
		slot = 1 - slot
	}
	total = 1
	for _, n := range shape {
		total *= n
	}
	return a.work[slot][:total], slot
}

// TransferOperator moves vectors between a fine and a coarse space over
// the same mesh, applying per-axis 1D interpolation matrices cell by
// cell. Restriction is the adjoint of prolongation weighted by the
// inverse fine DOF multiplicity, so shared-DOF contributions average
// correctly.
type TransferOperator struct {
	Fine, Coarse *space.FunctionSpace

	J      []utils.Matrix // per-axis prolongators, fine-size by coarse-size
	weight []float64      // 1/multiplicity per fine DOF
	arena  *Arena
}

// lineTabulator is the 1D basis surface the transfer build needs.
type lineTabulator interface {
	Tabulate(X utils.Vector) (V, D utils.Matrix)
}

func lineBasisFor(f element.LineFactor) lineTabulator {
	if f.Var == element.FDMVariant {
		return element.NewFDMBasis(f.P)
	}
	return element.NewLobattoBasis(f.P)
}

func NewTransferOperator(fine, coarse *space.FunctionSpace) (T *TransferOperator, err error) {
	if fine.Mesh != coarse.Mesh {
		return nil, fmt.Errorf("transfer requires fine and coarse spaces over the same mesh")
	}
	if fine.ValueSize() != coarse.ValueSize() {
		return nil, fmt.Errorf("transfer between value sizes %d and %d: %w",
			fine.ValueSize(), coarse.ValueSize(), element.ErrNotImplemented)
	}
	if m := element.MappingOf(fine.Elem); m != element.IdentityMapping {
		return nil, fmt.Errorf("transfer with mapping %v: %w", m, element.ErrNotImplemented)
	}
	if m := element.MappingOf(coarse.Elem); m != element.IdentityMapping {
		return nil, fmt.Errorf("transfer with mapping %v: %w", m, element.ErrNotImplemented)
	}
	ff, err := scalarFactors(fine.Elem)
	if err != nil {
		return nil, err
	}
	cf, err := scalarFactors(coarse.Elem)
	if err != nil {
		return nil, err
	}
	if len(ff) != len(cf) {
		return nil, fmt.Errorf("fine and coarse elements do not have the same number of factors")
	}

	T = &TransferOperator{Fine: fine, Coarse: coarse}
	maxLoc := 1
	for d := range ff {
		// expansion coefficients transfer by matching point values at
		// the fine nodes: Vf J = Vc
		Xf, _ := element.LobattoRule(ff[d].P + 1)
		Vf, _ := lineBasisFor(ff[d]).Tabulate(Xf)
		Vc, _ := lineBasisFor(cf[d]).Tabulate(Xf)
		Jd, serr := Vf.Solve(Vc)
		if serr != nil {
			return nil, fmt.Errorf("prolongator build failed on axis %d: %v", d, serr)
		}
		T.J = append(T.J, Jd)
		if ff[d].P+1 > cf[d].P+1 {
			maxLoc *= ff[d].P + 1
		} else {
			maxLoc *= cf[d].P + 1
		}
	}
	T.arena = NewArena(maxLoc)
	T.weight = inverseMultiplicity(fine)
	return T, nil
}

func scalarFactors(e element.Element) ([]element.LineFactor, error) {
	scalar := element.Unrestrict(e)
	if v, ok := scalar.(element.Vector); ok {
		scalar = v.Sub
	}
	return element.LineFactors(scalar)
}

// inverseMultiplicity scatter-adds constant ones over the cell node map
// and inverts, once per operator.
func inverseMultiplicity(fs *space.FunctionSpace) (w []float64) {
	var (
		vs = fs.ValueSize()
	)
	w = make([]float64, fs.NumDOFs())
	for cell := 0; cell < fs.Mesh.NumCells(); cell++ {
		for _, node := range fs.CellNodeMap(cell) {
			for c := 0; c < vs; c++ {
				w[node*vs+c]++
			}
		}
	}
	for i := range w {
		w[i] = 1 / w[i]
	}
	return
}

// Prolong interpolates a coarse vector onto the fine space. Shared fine
// DOFs receive consistent values from every owning cell, so plain
// assignment is exact.
func (T *TransferOperator) Prolong(xc, xf []float64) error {
	if len(xc) != T.Coarse.NumDOFs() || len(xf) != T.Fine.NumDOFs() {
		return fmt.Errorf("prolongation dimension mismatch: %d -> %d", len(xc), len(xf))
	}
	var (
		vs  = T.Fine.ValueSize()
		loc = make([]float64, T.Coarse.NodesPerCell())
	)
	for cell := 0; cell < T.Fine.Mesh.NumCells(); cell++ {
		var (
			cnodes = T.Coarse.CellNodeMap(cell)
			fnodes = T.Fine.CellNodeMap(cell)
		)
		for c := 0; c < vs; c++ {
			for i, node := range cnodes {
				loc[i] = xc[node*vs+c]
			}
			y, _ := kronmxv(false, T.J, loc, T.arena)
			for i, node := range fnodes {
				xf[node*vs+c] = y[i]
			}
		}
	}
	return nil
}

// Restrict applies the multiplicity-weighted adjoint of Prolong.
func (T *TransferOperator) Restrict(xf, yc []float64) error {
	if len(xf) != T.Fine.NumDOFs() || len(yc) != T.Coarse.NumDOFs() {
		return fmt.Errorf("restriction dimension mismatch: %d -> %d", len(xf), len(yc))
	}
	var (
		vs  = T.Fine.ValueSize()
		loc = make([]float64, T.Fine.NodesPerCell())
	)
	for i := range yc {
		yc[i] = 0
	}
	for cell := 0; cell < T.Fine.Mesh.NumCells(); cell++ {
		var (
			cnodes = T.Coarse.CellNodeMap(cell)
			fnodes = T.Fine.CellNodeMap(cell)
		)
		for c := 0; c < vs; c++ {
			for i, node := range fnodes {
				dof := node*vs + c
				loc[i] = T.weight[dof] * xf[dof]
			}
			y, _ := kronmxv(true, T.J, loc, T.arena)
			for i, node := range cnodes {
				yc[node*vs+c] += y[i]
			}
		}
	}
	return nil
}
