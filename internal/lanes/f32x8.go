package lanes

// F32x8 holds 8 float32 lanes.
type F32x8 [8]float32

// SplatF32x8 returns an F32x8 with every lane set to n.
func SplatF32x8(n float32) F32x8 {
	var result F32x8
	for i := range result {
		result[i] = n
	}
	return result
}

// IotaF32x8 returns {base, base+1, ..., base+7} converted to float32.
func IotaF32x8(base int) F32x8 {
	var result F32x8
	for i := range result {
		result[i] = float32(base + i)
	}
	return result
}

// Add performs element-wise addition.
func (v F32x8) Add(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = float32(v[i] + other[i])
	}
	return result
}

// Sub performs element-wise subtraction.
func (v F32x8) Sub(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = float32(v[i] - other[i])
	}
	return result
}

// Mul performs element-wise multiplication.
func (v F32x8) Mul(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = float32(v[i] * other[i])
	}
	return result
}

// LessEqual returns a mask of lanes where v[i] <= other[i].
// NaN lanes compare false.
func (v F32x8) LessEqual(other F32x8) M32x8 {
	var result M32x8
	for i := range v {
		if v[i] <= other[i] {
			result[i] = -1
		}
	}
	return result
}
