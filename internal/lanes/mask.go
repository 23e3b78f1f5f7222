package lanes

// M32x4 is a 4-lane mask. Each lane is -1 (set) or 0 (clear).
type M32x4 [4]int32

// M32x8 is an 8-lane mask. Each lane is -1 (set) or 0 (clear).
type M32x8 [8]int32

// AllM32x4 returns a mask with every lane set.
func AllM32x4() M32x4 {
	return M32x4{-1, -1, -1, -1}
}

// And returns the lanes set in both m and other.
func (m M32x4) And(other M32x4) M32x4 {
	return M32x4(I32x4(m).And(I32x4(other)))
}

// AndNot returns the lanes set in m and clear in other.
func (m M32x4) AndNot(other M32x4) M32x4 {
	return M32x4(I32x4(m).AndNot(I32x4(other)))
}

// Not inverts every lane.
func (m M32x4) Not() M32x4 {
	return AllM32x4().AndNot(m)
}

// Any reports whether at least one lane is set.
func (m M32x4) Any() bool {
	return m[0]|m[1]|m[2]|m[3] != 0
}

// AllM32x8 returns a mask with every lane set.
func AllM32x8() M32x8 {
	return M32x8{-1, -1, -1, -1, -1, -1, -1, -1}
}

// And returns the lanes set in both m and other.
func (m M32x8) And(other M32x8) M32x8 {
	return M32x8(I32x8(m).And(I32x8(other)))
}

// AndNot returns the lanes set in m and clear in other.
func (m M32x8) AndNot(other M32x8) M32x8 {
	return M32x8(I32x8(m).AndNot(I32x8(other)))
}

// Not inverts every lane.
func (m M32x8) Not() M32x8 {
	return AllM32x8().AndNot(m)
}

// Any reports whether at least one lane is set.
func (m M32x8) Any() bool {
	var acc int32
	for i := range m {
		acc |= m[i]
	}
	return acc != 0
}
