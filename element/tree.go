package element

import (
	"fmt"

	"github.com/notargets/fastdiag/utils"
)

// Variant selects the interval basis family behind a nodal element.
type Variant int

const (
	Nodal Variant = iota // Lobatto Lagrange points
	FDMVariant           // fast diagonalization eigenbasis
)

// Mapping relates reference-cell basis functions to physical fields.
type Mapping int

const (
	IdentityMapping Mapping = iota
	CovariantPiola          // H(curl) pullback
	ContravariantPiola      // H(div) pushforward
)

// Restriction marks the DOF subset a Restricted element keeps.
type Restriction int

const (
	RestrictInterior Restriction = iota
	RestrictFacet
)

// Element describes a local polynomial basis on a tensor-product
// reference cell. The taxonomy is closed: operations walk the variants by
// type switch rather than open dispatch.
type Element interface {
	Dim() int        // topological dimension of the reference cell
	Degree() int     // maximum polynomial degree over all factors
	FormDegree() int // 0 = H1 nodal, Dim = L2, in between = edge/face
	ValueSize() int  // components per basis function
	NumDOFs() int
	// WithDegree rebuilds the same structure at a new degree.
	WithDegree(p int) Element
	Equal(other Element) bool
}

// Lagrange is the scalar continuous tensor-product element on the
// interval, quadrilateral or hexahedron.
type Lagrange struct {
	P   int
	D   int
	Var Variant
}

func (e Lagrange) Dim() int        { return e.D }
func (e Lagrange) Degree() int     { return e.P }
func (e Lagrange) FormDegree() int { return 0 }
func (e Lagrange) ValueSize() int  { return 1 }
func (e Lagrange) NumDOFs() int    { return utils.POWInt(e.P+1, e.D) }
func (e Lagrange) WithDegree(p int) Element {
	if p < 1 {
		panic(fmt.Errorf("continuous element needs degree >= 1, got %d", p))
	}
	return Lagrange{P: p, D: e.D, Var: e.Var}
}
func (e Lagrange) Equal(other Element) bool { return e == other }

// DiscLagrange is the fully discontinuous counterpart.
type DiscLagrange struct {
	P   int
	D   int
	Var Variant
}

func (e DiscLagrange) Dim() int        { return e.D }
func (e DiscLagrange) Degree() int     { return e.P }
func (e DiscLagrange) FormDegree() int { return e.D }
func (e DiscLagrange) ValueSize() int  { return 1 }
func (e DiscLagrange) NumDOFs() int    { return utils.POWInt(e.P+1, e.D) }
func (e DiscLagrange) WithDegree(p int) Element {
	if p < 0 {
		panic(fmt.Errorf("negative degree %d", p))
	}
	return DiscLagrange{P: p, D: e.D, Var: e.Var}
}
func (e DiscLagrange) Equal(other Element) bool { return e == other }

// Vector repeats a sub element over a number of components.
type Vector struct {
	Sub        Element
	Components int
}

func (e Vector) Dim() int        { return e.Sub.Dim() }
func (e Vector) Degree() int     { return e.Sub.Degree() }
func (e Vector) FormDegree() int { return e.Sub.FormDegree() }
func (e Vector) ValueSize() int  { return e.Components * e.Sub.ValueSize() }
func (e Vector) NumDOFs() int    { return e.Components * e.Sub.NumDOFs() }
func (e Vector) WithDegree(p int) Element {
	return Vector{Sub: e.Sub.WithDegree(p), Components: e.Components}
}
func (e Vector) Equal(other Element) bool {
	o, ok := other.(Vector)
	return ok && o.Components == e.Components && e.Sub.Equal(o.Sub)
}

// Restricted keeps only the interior or only the facet DOFs of its sub
// element.
type Restricted struct {
	Sub    Element
	Domain Restriction
}

func (e Restricted) Dim() int        { return e.Sub.Dim() }
func (e Restricted) Degree() int     { return e.Sub.Degree() }
func (e Restricted) FormDegree() int { return e.Sub.FormDegree() }
func (e Restricted) ValueSize() int  { return e.Sub.ValueSize() }
func (e Restricted) NumDOFs() int {
	interior, facet := SplitDOFs(e.Sub)
	if e.Domain == RestrictInterior {
		return len(interior) * e.Sub.ValueSize()
	}
	return len(facet) * e.Sub.ValueSize()
}
func (e Restricted) WithDegree(p int) Element {
	return Restricted{Sub: e.Sub.WithDegree(p), Domain: e.Domain}
}
func (e Restricted) Equal(other Element) bool {
	o, ok := other.(Restricted)
	return ok && o.Domain == e.Domain && e.Sub.Equal(o.Sub)
}

// Broken detaches a sub element from inter-cell continuity.
type Broken struct {
	Sub Element
}

func (e Broken) Dim() int                 { return e.Sub.Dim() }
func (e Broken) Degree() int              { return e.Sub.Degree() }
func (e Broken) FormDegree() int          { return e.Sub.Dim() }
func (e Broken) ValueSize() int           { return e.Sub.ValueSize() }
func (e Broken) NumDOFs() int             { return e.Sub.NumDOFs() }
func (e Broken) WithDegree(p int) Element { return Broken{Sub: e.Sub.WithDegree(p)} }
func (e Broken) Equal(other Element) bool {
	o, ok := other.(Broken)
	return ok && e.Sub.Equal(o.Sub)
}

// Enriched concatenates the DOFs of its parts.
type Enriched struct {
	Parts []Element
}

func (e Enriched) Dim() int { return e.Parts[0].Dim() }
func (e Enriched) Degree() int {
	var p int
	for _, part := range e.Parts {
		if part.Degree() > p {
			p = part.Degree()
		}
	}
	return p
}
func (e Enriched) FormDegree() int { return e.Parts[0].FormDegree() }
func (e Enriched) ValueSize() int  { return e.Parts[0].ValueSize() }
func (e Enriched) NumDOFs() int {
	var n int
	for _, part := range e.Parts {
		n += part.NumDOFs()
	}
	return n
}
func (e Enriched) WithDegree(p int) Element {
	parts := make([]Element, len(e.Parts))
	for i, part := range e.Parts {
		parts[i] = part.WithDegree(p)
	}
	return Enriched{Parts: parts}
}
func (e Enriched) Equal(other Element) bool {
	o, ok := other.(Enriched)
	if !ok || len(o.Parts) != len(e.Parts) {
		return false
	}
	for i, part := range e.Parts {
		if !part.Equal(o.Parts[i]) {
			return false
		}
	}
	return true
}

// Mapped attaches a non-identity pullback to a sub element.
type Mapped struct {
	Sub Element
	Map Mapping
}

func (e Mapped) Dim() int                 { return e.Sub.Dim() }
func (e Mapped) Degree() int              { return e.Sub.Degree() }
func (e Mapped) FormDegree() int          { return e.Sub.FormDegree() }
func (e Mapped) ValueSize() int           { return e.Sub.ValueSize() }
func (e Mapped) NumDOFs() int             { return e.Sub.NumDOFs() }
func (e Mapped) WithDegree(p int) Element { return Mapped{Sub: e.Sub.WithDegree(p), Map: e.Map} }
func (e Mapped) Equal(other Element) bool {
	o, ok := other.(Mapped)
	return ok && o.Map == e.Map && e.Sub.Equal(o.Sub)
}

// Unrestrict strips Restricted wrappers, returning the underlying element.
func Unrestrict(e Element) Element {
	switch v := e.(type) {
	case Restricted:
		return Unrestrict(v.Sub)
	case Vector:
		return Vector{Sub: Unrestrict(v.Sub), Components: v.Components}
	default:
		return e
	}
}

// MappingOf returns the pullback of an element, identity unless a Mapped
// wrapper says otherwise.
func MappingOf(e Element) Mapping {
	switch v := e.(type) {
	case Mapped:
		return v.Map
	case Vector:
		return MappingOf(v.Sub)
	case Restricted:
		return MappingOf(v.Sub)
	case Broken:
		return MappingOf(v.Sub)
	default:
		return IdentityMapping
	}
}

// BaseElements unwraps to the scalar leaves in DOF order.
func BaseElements(e Element) (leaves []Element) {
	switch v := e.(type) {
	case Vector:
		sub := BaseElements(v.Sub)
		for i := 0; i < v.Components; i++ {
			leaves = append(leaves, sub...)
		}
	case Restricted:
		leaves = BaseElements(v.Sub)
	case Broken:
		leaves = BaseElements(v.Sub)
	case Mapped:
		leaves = BaseElements(v.Sub)
	case Enriched:
		for _, part := range v.Parts {
			leaves = append(leaves, BaseElements(part)...)
		}
	default:
		leaves = []Element{e}
	}
	return
}

// LineFactor is one 1D factor of a tensor-product decomposition.
type LineFactor struct {
	P          int
	Continuous bool
	Var        Variant
}

// LineFactors decomposes a scalar tensor-product element into its ordered
// 1D factors, axis 0 slowest in the DOF numbering. Elements that are not
// tensor products of interval bases report an unsupported configuration.
func LineFactors(e Element) (factors []LineFactor, err error) {
	switch v := e.(type) {
	case Lagrange:
		for d := 0; d < v.D; d++ {
			factors = append(factors, LineFactor{P: v.P, Continuous: true, Var: v.Var})
		}
	case DiscLagrange:
		for d := 0; d < v.D; d++ {
			factors = append(factors, LineFactor{P: v.P, Continuous: false, Var: v.Var})
		}
	case Broken:
		return LineFactors(v.Sub)
	case Mapped:
		return LineFactors(v.Sub)
	case Restricted:
		return LineFactors(v.Sub)
	default:
		err = fmt.Errorf("cannot decompose %T into line factors: %w", e, ErrNotImplemented)
	}
	return
}

// SplitDOFs partitions the scalar DOFs of a tensor-product element into
// the interior set and the facet set, both in lexicographic order. A DOF
// is on a facet when any of its per-axis node indices sits at an endpoint
// of a continuous factor.
func SplitDOFs(e Element) (interior, facet utils.Index) {
	scalar := Unrestrict(e)
	if v, ok := scalar.(Vector); ok {
		scalar = v.Sub
	}
	factors, err := LineFactors(scalar)
	if err != nil {
		panic(err)
	}
	sizes := make([]int, len(factors))
	for d, f := range factors {
		sizes[d] = f.P + 1
	}
	total := 1
	for _, n := range sizes {
		total *= n
	}
	idx := make([]int, len(sizes))
	for node := 0; node < total; node++ {
		onFacet := false
		for d := range sizes {
			if factors[d].Continuous && (idx[d] == 0 || idx[d] == sizes[d]-1) {
				onFacet = true
				break
			}
		}
		if onFacet {
			facet = append(facet, node)
		} else {
			interior = append(interior, node)
		}
		// lexicographic increment, last axis fastest
		for d := len(sizes) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < sizes[d] {
				break
			}
			idx[d] = 0
		}
	}
	return
}

// ErrNotImplemented marks unsupported element and mapping configurations.
var ErrNotImplemented = fmt.Errorf("unsupported configuration")
