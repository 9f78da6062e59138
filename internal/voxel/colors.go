package voxel

import "math"

// HSL цвет в пространстве оттенок/насыщенность/светлота, все компоненты 0..255
type HSL struct {
	H, S, L uint8
}

// RGBToHSL переводит цвет вокселя в HSL (альфа игнорируется)
func RGBToHSL(v Voxel) HSL {
	r := float64(v.R) / 255
	g := float64(v.G) / 255
	b := float64(v.B) / 255

	maxc := math.Max(r, math.Max(g, b))
	minc := math.Min(r, math.Min(g, b))
	l := (maxc + minc) / 2

	if maxc == minc {
		return HSL{H: 0, S: 0, L: uint8(math.Round(l * 255))}
	}

	d := maxc - minc
	var s float64
	if l > 0.5 {
		s = d / (2 - maxc - minc)
	} else {
		s = d / (maxc + minc)
	}

	var h float64
	switch maxc {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6

	return HSL{
		H: uint8(math.Round(h * 255)),
		S: uint8(math.Round(s * 255)),
		L: uint8(math.Round(l * 255)),
	}
}

// HSLToRGB переводит HSL обратно в непрозрачный воксель
func HSLToRGB(c HSL) Voxel {
	h := float64(c.H) / 255
	s := float64(c.S) / 255
	l := float64(c.L) / 255

	if s == 0 {
		g := uint8(math.Round(l * 255))
		return Voxel{R: g, G: g, B: g, A: 255}
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return Voxel{
		R: uint8(math.Round(hueToRGB(p, q, h+1.0/3) * 255)),
		G: uint8(math.Round(hueToRGB(p, q, h) * 255)),
		B: uint8(math.Round(hueToRGB(p, q, h-1.0/3) * 255)),
		A: 255,
	}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
