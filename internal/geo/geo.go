package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/mmcloughlin/geohash"
)

const (
	EarthRadiusKM = 6371.0

	maxPrecision = 8
)

var ErrInvalidCoordinates = fmt.Errorf("invalid coordinates")

// base32 is the geohash alphabet in sort order. Range ends are computed by
// stepping the last prefix character to its successor in this alphabet.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Geohash cell dimensions in km at the equator, by precision. Cell height
// is constant at every latitude; cell width shrinks by cos(latitude), so
// cover selection must scale it before comparing against the radius.
var (
	cellWidthKM = [maxPrecision + 1]float64{
		0, 5000, 1250, 156, 39.1, 4.89, 1.22, 0.153, 0.038,
	}
	cellHeightKM = [maxPrecision + 1]float64{
		0, 5000, 625, 156, 19.5, 4.89, 0.61, 0.153, 0.019,
	}
)

// PrefixRange is a half-open [Start, End) geohash key range. Every geohash
// beginning with the originating prefix falls inside it.
type PrefixRange struct {
	Start string
	End   string
}

func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// HaversineKM returns the great-circle distance between two points in km.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKM * c
}

// Encode returns the geohash of a point at the precision used by the
// profile store index.
func Encode(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, maxPrecision)
}

// CoverRadius returns geohash key ranges whose union contains every point
// within radiusKM of the origin. The cover is the origin's cell plus its
// eight neighbors at a precision coarse enough that one cell spans the
// radius, so it over-approximates the circle; callers must post-filter by
// exact distance.
func CoverRadius(lat, lon, radiusKM float64) ([]PrefixRange, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if radiusKM <= 0 {
		return nil, fmt.Errorf("radius must be positive")
	}

	precision := precisionForRadius(lat, radiusKM)
	center := geohash.EncodeWithPrecision(lat, lon, precision)

	prefixes := append([]string{center}, geohash.Neighbors(center)...)
	seen := make(map[string]struct{}, len(prefixes))
	ranges := make([]PrefixRange, 0, len(prefixes))
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}
		ranges = append(ranges, prefixRange(prefix))
	}

	return ranges, nil
}

// precisionForRadius picks the finest precision whose cells still span the
// radius in both dimensions at the given latitude, so that a cell plus one
// ring of neighbors contains the circle.
func precisionForRadius(lat, radiusKM float64) uint {
	cosLat := math.Cos(lat * math.Pi / 180)
	for p := maxPrecision; p >= 1; p-- {
		if cellWidthKM[p]*cosLat >= radiusKM && cellHeightKM[p] >= radiusKM {
			return uint(p)
		}
	}
	return 1
}

func prefixRange(prefix string) PrefixRange {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		idx := strings.IndexByte(base32, end[i])
		if idx >= 0 && idx < len(base32)-1 {
			end[i] = base32[idx+1]
			return PrefixRange{Start: prefix, End: string(end[:i+1])}
		}
	}
	// prefix is all 'z'; '~' sorts after every geohash character
	return PrefixRange{Start: prefix, End: "~"}
}
