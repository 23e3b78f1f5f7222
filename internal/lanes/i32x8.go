package lanes

// I32x8 holds 8 int32 lanes.
type I32x8 [8]int32

// SplatI32x8 returns an I32x8 with every lane set to n.
func SplatI32x8(n int32) I32x8 {
	var result I32x8
	for i := range result {
		result[i] = n
	}
	return result
}

// Add performs element-wise addition.
func (v I32x8) Add(other I32x8) I32x8 {
	var result I32x8
	for i := range v {
		result[i] = v[i] + other[i]
	}
	return result
}

// And returns v & other lane by lane.
func (v I32x8) And(other I32x8) I32x8 {
	var result I32x8
	for i := range v {
		result[i] = v[i] & other[i]
	}
	return result
}

// AndNot returns v &^ other lane by lane.
func (v I32x8) AndNot(other I32x8) I32x8 {
	var result I32x8
	for i := range v {
		result[i] = v[i] &^ other[i]
	}
	return result
}

// Or returns v | other lane by lane.
func (v I32x8) Or(other I32x8) I32x8 {
	var result I32x8
	for i := range v {
		result[i] = v[i] | other[i]
	}
	return result
}

// Less returns a mask of lanes where v[i] < other[i].
func (v I32x8) Less(other I32x8) M32x8 {
	var result M32x8
	for i := range v {
		if v[i] < other[i] {
			result[i] = -1
		}
	}
	return result
}

// Blend returns v in lanes where mask is set and other elsewhere.
func (v I32x8) Blend(other I32x8, mask M32x8) I32x8 {
	m := I32x8(mask)
	return v.And(m).Or(other.AndNot(m))
}

// Store writes the lanes to dst[0:8].
func (v I32x8) Store(dst []int32) {
	_ = dst[7]
	copy(dst, v[:])
}
