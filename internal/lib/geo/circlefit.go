package geo

import "math"

// Radius bounds outside which a fit is rejected as noise (too tight) or as
// effectively straight (too wide).
const (
	minFitRadiusMeters = 10.0
	maxFitRadiusMeters = 10000.0
)

// FitCircle fits a circle through a window of GPS points by linear least
// squares (Kasa method) in a local tangent-plane projection anchored at the
// first point. The fit is reported invalid when the normal equations are
// near-singular, which happens for collinear or near-collinear windows, or
// when the fitted radius is outside the plausible band.
func (g *geoUtils) FitCircle(points []Point) CircleFit {
	if len(points) < 3 {
		return CircleFit{}
	}

	xy := g.ToLocalXY(points[0], points)

	// Kasa linearization: x^2 + y^2 + D*x + E*y + F = 0.
	// Accumulate the 3x3 normal equations for (D, E, F).
	var sxx, sxy, syy, sx, sy, sn float64
	var sxz, syz, sz float64
	for _, p := range xy {
		z := p.X*p.X + p.Y*p.Y
		sxx += p.X * p.X
		sxy += p.X * p.Y
		syy += p.Y * p.Y
		sx += p.X
		sy += p.Y
		sn++
		sxz += p.X * z
		syz += p.Y * z
		sz += z
	}

	// Solve [sxx sxy sx; sxy syy sy; sx sy sn] * [D E F]^T = -[sxz syz sz]^T
	det := sxx*(syy*sn-sy*sy) - sxy*(sxy*sn-sy*sx) + sx*(sxy*sy-syy*sx)
	if math.Abs(det) < 1e-9 {
		return CircleFit{}
	}

	// Cramer's rule with b = (-sxz, -syz, -sz).
	b1, b2, b3 := -sxz, -syz, -sz
	d := (b1*(syy*sn-sy*sy) - sxy*(b2*sn-b3*sy) + sx*(b2*sy-syy*b3)) / det
	e := (sxx*(b2*sn-b3*sy) - b1*(sxy*sn-sy*sx) + sx*(sxy*b3-b2*sx)) / det
	f := (sxx*(syy*b3-b2*sy) - sxy*(sxy*b3-b2*sx) + b1*(sxy*sy-syy*sx)) / det

	cx := -d / 2
	cy := -e / 2
	radiusSq := cx*cx + cy*cy - f
	if radiusSq <= 0 || math.IsNaN(radiusSq) {
		return CircleFit{}
	}
	radius := math.Sqrt(radiusSq)

	if radius < minFitRadiusMeters || radius > maxFitRadiusMeters {
		return CircleFit{Radius: radius, Center: XY{X: cx, Y: cy}}
	}

	// Confidence from RMS radial residual relative to the radius: a clean
	// circular window scores near 1, a ragged one decays toward 0.
	var residualSq float64
	for _, p := range xy {
		dist := math.Hypot(p.X-cx, p.Y-cy)
		residualSq += (dist - radius) * (dist - radius)
	}
	rms := math.Sqrt(residualSq / sn)
	confidence := 1 - rms/(0.1*radius)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return CircleFit{
		Radius:     radius,
		Center:     XY{X: cx, Y: cy},
		Confidence: confidence,
		IsValid:    true,
	}
}
