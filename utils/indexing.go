package utils

// Index is a list of integer indices into a vector or matrix.
type Index []int

// NewRange returns the indices [min, max) in order.
func NewRange(min, max int) (I Index) {
	I = make(Index, max-min)
	for i := range I {
		I[i] = min + i
	}
	return
}

func (I Index) Copy() (R Index) {
	R = make(Index, len(I))
	copy(R, I)
	return
}

func (I Index) Add(val int) Index { // Changes receiver
	for i := range I {
		I[i] += val
	}
	return I
}

func (I Index) Apply(f func(val int) int) (R Index) { // Does not change receiver
	R = make(Index, len(I))
	for i, val := range I {
		R[i] = f(val)
	}
	return
}

// Subset gathers I[j] for each j in J.
func (I Index) Subset(J Index) (R Index) {
	R = make(Index, len(J))
	for i, j := range J {
		R[i] = I[j]
	}
	return
}

// Contains reports whether val appears in I.
func (I Index) Contains(val int) bool {
	for _, v := range I {
		if v == val {
			return true
		}
	}
	return false
}

// Complement returns the indices in [0, n) not present in I, in order.
func (I Index) Complement(n int) (R Index) {
	mark := make([]bool, n)
	for _, v := range I {
		mark[v] = true
	}
	for i := 0; i < n; i++ {
		if !mark[i] {
			R = append(R, i)
		}
	}
	return
}

// POWInt computes x to the power p for non-negative integer p.
func POWInt(x, p int) (y int) {
	y = 1
	for i := 0; i < p; i++ {
		y *= x
	}
	return
}

// Roll rotates the index left by shift places, wrapping around.
func (I Index) Roll(shift int) (R Index) {
	n := len(I)
	if n == 0 {
		return I
	}
	shift = ((shift % n) + n) % n
	R = make(Index, n)
	copy(R, I[shift:])
	copy(R[n-shift:], I[:shift])
	return
}
