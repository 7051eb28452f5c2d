package fdm

import (
	"fmt"

	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/grid"
	"github.com/notargets/fastdiag/utils"
)

// Coefficients are the frozen cell-wise fields of one assembly cycle:
// the diagonal of the second-order tensor per cell and axis, the
// diagonal of the zero-th order tensor per cell and component, and the
// two-sided facet diffusivity for the interior penalty terms. The fields
// hold no valid data until every Assemble callback has run; re-invoking
// the callbacks refreshes them in place.
type Coefficients struct {
	Alpha       [][]float64    // [cell][axis]
	Beta        [][]float64    // [cell][component], nil when the form has no mass term
	BetaBlock   []utils.Matrix // [cell], full value-size square mass tensor
	BetaCoupled bool           // any cell carries off-diagonal mass entries
	FacetAlpha  [][2]float64   // [interior facet][side], normal component
	Assemble    []func() error
}

// ExtractCoefficients peels the second-order and zero-th order
// coefficients off the closed term tree of the bilinear form. The
// off-diagonal diffusion entries are discarded, sparsifying the
// preconditioner at a controlled accuracy cost; the zero-th order
// tensor is kept in full so component coupling through the mass term
// can be assembled when requested.
func ExtractCoefficients(f *form.Form) (coef *Coefficients, err error) {
	var (
		mesh     = f.Test.Mesh
		dim      = mesh.Dim
		vs       = f.Test.ValueSize()
		ncells   = mesh.NumCells()
		grads    []form.GradGrad
		masses   []form.Mass
		hasFacet bool
	)
	if f.Test != f.Trial {
		// coupling blocks of a mixed space: the coefficient layout only
		// depends on the mesh and the local DOF shape, so structurally
		// matching spaces extract the same way
		if f.Trial.Mesh != mesh || f.Trial.Elem.Degree() != f.Test.Elem.Degree() ||
			f.Trial.ValueSize() != vs {
			return nil, fmt.Errorf("coefficient extraction requires structurally matching test and trial spaces")
		}
	}
	for _, integ := range f.IntegralsByType(form.Cell) {
		for _, term := range integ.Terms {
			switch v := term.(type) {
			case form.GradGrad:
				grads = append(grads, v)
			case form.Mass:
				masses = append(masses, v)
			}
		}
	}
	hasFacet = len(f.IntegralsByType(form.InteriorFacet)) > 0

	coef = &Coefficients{
		Alpha: make([][]float64, ncells),
	}
	for cell := range coef.Alpha {
		coef.Alpha[cell] = make([]float64, dim)
	}
	if len(masses) > 0 {
		coef.Beta = make([][]float64, ncells)
		coef.BetaBlock = make([]utils.Matrix, ncells)
		for cell := range coef.Beta {
			coef.Beta[cell] = make([]float64, vs)
			coef.BetaBlock[cell] = utils.NewMatrix(vs, vs)
		}
	}

	coef.Assemble = append(coef.Assemble, func() error {
		for cell := 0; cell < ncells; cell++ {
			avg, cerr := cellAverage(mesh, cell, grads, dim)
			if cerr != nil {
				return cerr
			}
			copy(coef.Alpha[cell], avg)
		}
		return nil
	})
	if coef.Beta != nil {
		coef.Assemble = append(coef.Assemble, func() error {
			coef.BetaCoupled = false
			for cell := 0; cell < ncells; cell++ {
				x := mesh.CellCenter(cell)
				blk := coef.BetaBlock[cell].Scale(0)
				for _, m := range masses {
					B := m.Beta(x)
					br, bc := B.Dims()
					if br != vs || bc != vs {
						return fmt.Errorf("mass coefficient rank mismatch: %dx%d tensor for value size %d", br, bc, vs)
					}
					for r := 0; r < vs; r++ {
						for c := 0; c < vs; c++ {
							blk.Set(r, c, blk.At(r, c)+B.At(r, c))
						}
					}
				}
				for c := 0; c < vs; c++ {
					coef.Beta[cell][c] = blk.At(c, c)
				}
				for r := 0; r < vs; r++ {
					for c := 0; c < vs; c++ {
						if r != c && blk.At(r, c) != 0 {
							coef.BetaCoupled = true
						}
					}
				}
			}
			return nil
		})
	}
	if hasFacet {
		facets := mesh.InteriorFacets()
		coef.FacetAlpha = make([][2]float64, len(facets))
		coef.Assemble = append(coef.Assemble, func() error {
			for fi, fc := range facets {
				for side, cell := range [2]int{fc.Minus, fc.Plus} {
					x := facetCenter(mesh, cell, fc.Axis, 1-side)
					var val float64
					for _, g := range grads {
						A := g.Alpha(x)
						ar, ac := A.Dims()
						if ar != dim || ac != dim {
							return fmt.Errorf("diffusion coefficient rank mismatch: %dx%d tensor in dimension %d", ar, ac, dim)
						}
						val += A.At(fc.Axis, fc.Axis)
					}
					coef.FacetAlpha[fi][side] = val
				}
			}
			return nil
		})
	}
	return coef, nil
}

// cellAverage integrates the diagonal of the summed alpha tensors over
// the cell with a two point Gauss rule per axis.
func cellAverage(mesh *grid.Mesh, cell int, grads []form.GradGrad, dim int) (avg []float64, err error) {
	var (
		center = mesh.CellCenter(cell)
		npts   = utils.POWInt(2, dim)
	)
	avg = make([]float64, dim)
	x := make([]float64, dim)
	const g = 0.5773502691896257 // 1/sqrt(3)
	for q := 0; q < npts; q++ {
		rem := q
		for d := 0; d < dim; d++ {
			s := 1.0
			if rem%2 == 0 {
				s = -1.0
			}
			rem /= 2
			x[d] = center[d] + 0.5*mesh.CellSize(d)*g*s
		}
		for _, gg := range grads {
			A := gg.Alpha(x)
			ar, ac := A.Dims()
			if ar != dim || ac != dim {
				return nil, fmt.Errorf("diffusion coefficient rank mismatch: %dx%d tensor in dimension %d", ar, ac, dim)
			}
			for d := 0; d < dim; d++ {
				avg[d] += A.At(d, d)
			}
		}
	}
	for d := 0; d < dim; d++ {
		avg[d] /= float64(npts)
	}
	return
}

// facetCenter is the midpoint of the cell face on the given axis; side 1
// is the high end.
func facetCenter(mesh *grid.Mesh, cell, axis, side int) (x []float64) {
	x = mesh.CellCenter(cell)
	if side == 0 {
		x[axis] -= 0.5 * mesh.CellSize(axis)
	} else {
		x[axis] += 0.5 * mesh.CellSize(axis)
	}
	return
}
