package geo

// EarthRadiusMeters is the fixed earth radius all geometry in this module
// assumes. Downstream sight-line math depends on this exact constant.
const EarthRadiusMeters = 6371000.0

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// XY is a position in a local tangent-plane projection, in meters.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CircleFit is the result of least-squares circle fitting over a point window.
// IsValid is false when the fit is numerically degenerate (near-collinear
// points) or the radius falls outside the plausible band.
type CircleFit struct {
	Radius     float64 `json:"radius_meters"`
	Center     XY      `json:"center"`
	Confidence float64 `json:"confidence"`
	IsValid    bool    `json:"is_valid"`
}

// GeoUtils defines the geographic calculation utilities used by the
// blind-spot analyzers.
type GeoUtils interface {
	// Calculate great-circle distance between two points in meters
	PointToPoint(p1, p2 Point) (float64, error)

	// Calculate initial bearing from p1 to p2 in degrees [0, 360)
	Bearing(p1, p2 Point) (float64, error)

	// Calculate minimum distance from point to a point sequence in meters
	PointToPolyline(point Point, points []Point) (float64, error)

	// Decode Google polyline string to point sequence
	DecodePolyline(encoded string) ([]Point, error)

	// Project points onto a local tangent plane anchored at origin
	ToLocalXY(origin Point, points []Point) []XY

	// Fit a circle through a point window via least squares
	FitCircle(points []Point) CircleFit

	// Length of the sight shadow cast by an obstruction at distance
	ShadowLength(observerHeight, obstructionHeight, distance float64) float64
}
