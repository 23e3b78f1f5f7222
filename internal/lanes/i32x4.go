package lanes

// I32x4 holds 4 int32 lanes.
type I32x4 [4]int32

// SplatI32x4 returns an I32x4 with every lane set to n.
func SplatI32x4(n int32) I32x4 {
	return I32x4{n, n, n, n}
}

// Add performs element-wise addition.
func (v I32x4) Add(other I32x4) I32x4 {
	var result I32x4
	for i := range v {
		result[i] = v[i] + other[i]
	}
	return result
}

// And returns v & other lane by lane.
func (v I32x4) And(other I32x4) I32x4 {
	var result I32x4
	for i := range v {
		result[i] = v[i] & other[i]
	}
	return result
}

// AndNot returns v &^ other lane by lane.
func (v I32x4) AndNot(other I32x4) I32x4 {
	var result I32x4
	for i := range v {
		result[i] = v[i] &^ other[i]
	}
	return result
}

// Or returns v | other lane by lane.
func (v I32x4) Or(other I32x4) I32x4 {
	var result I32x4
	for i := range v {
		result[i] = v[i] | other[i]
	}
	return result
}

// Less returns a mask of lanes where v[i] < other[i].
func (v I32x4) Less(other I32x4) M32x4 {
	var result M32x4
	for i := range v {
		if v[i] < other[i] {
			result[i] = -1
		}
	}
	return result
}

// Blend returns v in lanes where mask is set and other elsewhere.
func (v I32x4) Blend(other I32x4, mask M32x4) I32x4 {
	m := I32x4(mask)
	return v.And(m).Or(other.AndNot(m))
}

// Store writes the lanes to dst[0:4].
func (v I32x4) Store(dst []int32) {
	_ = dst[3]
	copy(dst, v[:])
}
