package mathx

import "golang.org/x/exp/constraints"

// Scale maps x from [inLo, inHi] onto [outLo, outHi]. x is clamped to the
// input range first and the arithmetic is done in 64 bits, so 16-bit ADC
// counts cannot overflow the product.
func Scale[T constraints.Integer](x, inLo, inHi, outLo, outHi T) T {
	if inHi == inLo {
		return outLo
	}
	x = Clamp(x, inLo, inHi)
	num := (int64(x) - int64(inLo)) * (int64(outHi) - int64(outLo))
	return T(int64(outLo) + num/(int64(inHi)-int64(inLo)))
}
