package lanes

// F32x4 holds 4 float32 lanes.
type F32x4 [4]float32

// SplatF32x4 returns an F32x4 with every lane set to n.
func SplatF32x4(n float32) F32x4 {
	return F32x4{n, n, n, n}
}

// IotaF32x4 returns {base, base+1, base+2, base+3} converted to float32.
func IotaF32x4(base int) F32x4 {
	var result F32x4
	for i := range result {
		result[i] = float32(base + i)
	}
	return result
}

// Add performs element-wise addition.
func (v F32x4) Add(other F32x4) F32x4 {
	var result F32x4
	for i := range v {
		result[i] = float32(v[i] + other[i])
	}
	return result
}

// Sub performs element-wise subtraction.
func (v F32x4) Sub(other F32x4) F32x4 {
	var result F32x4
	for i := range v {
		result[i] = float32(v[i] - other[i])
	}
	return result
}

// Mul performs element-wise multiplication.
func (v F32x4) Mul(other F32x4) F32x4 {
	var result F32x4
	for i := range v {
		result[i] = float32(v[i] * other[i])
	}
	return result
}

// LessEqual returns a mask of lanes where v[i] <= other[i].
// NaN lanes compare false.
func (v F32x4) LessEqual(other F32x4) M32x4 {
	var result M32x4
	for i := range v {
		if v[i] <= other[i] {
			result[i] = -1
		}
	}
	return result
}
