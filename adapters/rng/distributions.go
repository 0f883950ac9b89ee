// Package rng implements the seed-reproducible random streams used by the null
// distribution generators: integer, shuffle and normal draws layered on a 32-bit
// Mersenne Twister.
package rng

import (
	"math"
)

// source produces full-range 32-bit words
type source interface {
	Uint32() uint32
}

const (
	engineRange = math.MaxUint32 // max - min of the engine output
	two32       = 4294967296.0
	two64       = 18446744073709551616.0
)

// uniformUpTo returns an unbiased integer in [0, urange]
func uniformUpTo(g source, urange uint64) uint64 {
	switch {
	case urange < engineRange:
		return uint64(multiplyShift(g, uint32(urange+1)))
	case urange == engineRange:
		return uint64(g.Uint32())
	default:
		// compose a wide draw from a high part and one raw word, rejecting overflow
		const span = engineRange + 1
		for {
			tmp := span * uniformUpTo(g, urange/span)
			ret := tmp + uint64(g.Uint32())
			if ret <= urange && ret >= tmp {
				return ret
			}
		}
	}
}

// multiplyShift maps a 32-bit word onto [0, r) by 64-bit multiplication, rejecting
// the few low products that would bias the result.
func multiplyShift(g source, r uint32) uint32 {
	product := uint64(g.Uint32()) * uint64(r)
	low := uint32(product)
	if low < r {
		threshold := -r % r
		for low < threshold {
			product = uint64(g.Uint32()) * uint64(r)
			low = uint32(product)
		}
	}
	return uint32(product >> 32)
}

// shuffle permutes a in place with a Fisher-Yates pass. While n² fits in the engine
// range, the swap targets of two consecutive positions come from a single draw.
func shuffle(g source, a []int) {
	n := len(a)
	if n < 2 {
		return
	}
	urange := uint64(n)

	if engineRange/urange >= urange {
		i := 1
		if urange%2 == 0 {
			j := uniformUpTo(g, 1)
			a[i], a[j] = a[j], a[i]
			i++
		}
		for i != n {
			swapRange := uint64(i) + 1
			x := uniformUpTo(g, swapRange*(swapRange+1)-1)
			p1, p2 := x/(swapRange+1), x%(swapRange+1)

			a[i], a[p1] = a[p1], a[i]
			i++
			a[i], a[p2] = a[p2], a[i]
			i++
		}
		return
	}

	for i := 1; i < n; i++ {
		j := uniformUpTo(g, uint64(i))
		a[i], a[j] = a[j], a[i]
	}
}

// canonical returns a float64 in [0, 1) built from two engine words
func canonical(g source) float64 {
	sum := float64(g.Uint32())
	sum += float64(g.Uint32()) * two32
	ret := sum / two64
	if ret >= 1 {
		ret = math.Nextafter(1, 0)
	}
	return ret
}

// normalPair draws two independent standard normals with Marsaglia's polar method
func normalPair(g source) (saved, ret float64) {
	var x, y, r2 float64
	for {
		x = 2*canonical(g) - 1
		y = 2*canonical(g) - 1
		r2 = x*x + y*y
		if r2 <= 1 && r2 != 0 {
			break
		}
	}
	mult := math.Sqrt(-2 * math.Log(r2) / r2)
	return x * mult, y * mult
}
