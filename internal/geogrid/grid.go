// Package geogrid lays out geographic sampling grids around a center point.
package geogrid

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

// earthRadiusKM is the mean Earth radius used for great-circle projection.
const earthRadiusKM = 6371.0

// Generate lays an N×N lattice over [-radius, +radius] around the center and
// projects each lattice offset onto the sphere. For Circular, points whose
// normalized distance from the grid center exceeds 1 are dropped, leaving the
// inscribed circle of the square lattice.
//
// Ids are assigned row*N+col+1, so a circular grid keeps the ids of the
// surviving square-lattice positions. Output is deterministic: same inputs
// yield the same ordered slice.
func Generate(centerLat, centerLng, radiusKM float64, n int, shape model.Shape) ([]model.GridPoint, error) {
	if n <= 0 {
		return nil, eris.Errorf("geogrid: grid size must be positive, got %d", n)
	}
	if radiusKM < 0 {
		return nil, eris.Errorf("geogrid: radius must be non-negative, got %f", radiusKM)
	}
	if shape != model.Square && shape != model.Circular {
		return nil, eris.Errorf("geogrid: invalid shape %d", shape)
	}

	// N=1 samples the center itself.
	if n == 1 {
		return []model.GridPoint{{ID: 1, Lat: centerLat, Lng: centerLng}}, nil
	}

	points := make([]model.GridPoint, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			// Normalize lattice offsets to [-1, 1] in both axes.
			nx := 2*float64(col)/float64(n-1) - 1
			ny := 2*float64(row)/float64(n-1) - 1

			if shape == model.Circular && math.Hypot(nx, ny) > 1+1e-9 {
				continue
			}

			lat, lng := destination(centerLat, centerLng, nx*radiusKM, ny*radiusKM)
			points = append(points, model.GridPoint{
				ID:  row*n + col + 1,
				Lat: lat,
				Lng: lng,
			})
		}
	}

	// A 2x2 circular grid has only corner points, all outside the inscribed
	// circle. An empty grid is a configuration error, not an empty report.
	if len(points) == 0 {
		return nil, eris.Errorf("geogrid: no points survive the circular cut for grid size %d", n)
	}

	return points, nil
}

// destination projects an east/north offset in kilometers from the origin
// onto the sphere using a great-circle bearing/distance step. Keeps longitude
// spacing correct away from the equator, unlike a flat linear approximation.
func destination(lat, lng, eastKM, northKM float64) (float64, float64) {
	dist := math.Hypot(eastKM, northKM)
	if dist == 0 {
		return lat, lng
	}

	bearing := math.Atan2(eastKM, northKM) // from north, clockwise
	ad := dist / earthRadiusKM             // angular distance

	lat1 := lat * math.Pi / 180
	lng1 := lng * math.Pi / 180

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ad) + math.Cos(lat1)*math.Sin(ad)*math.Cos(bearing))
	lng2 := lng1 + math.Atan2(
		math.Sin(bearing)*math.Sin(ad)*math.Cos(lat1),
		math.Cos(ad)-math.Sin(lat1)*math.Sin(lat2),
	)

	// Normalize longitude to [-180, 180).
	lng2 = math.Mod(lng2+3*math.Pi, 2*math.Pi) - math.Pi

	return lat2 * 180 / math.Pi, lng2 * 180 / math.Pi
}

// Bounds returns the bounding box of a generated grid as a go-geom extent,
// ordered (minLng, minLat, maxLng, maxLat). Used by map viewports and tile
// prefetching.
func Bounds(points []model.GridPoint) (*geom.Bounds, error) {
	if len(points) == 0 {
		return nil, eris.New("geogrid: no points")
	}
	b := geom.NewBounds(geom.XY)
	for _, p := range points {
		b.Extend(geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}))
	}
	return b, nil
}
