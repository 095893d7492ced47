// Package polyline decodes and encodes route geometry in the encoded polyline format.
// OSRM emits precision 5 by default and precision 6 for "polyline6".
package polyline

import (
	"errors"
	"math"

	"github.com/ecoroute/ecoroute/internal/geo"
)

// Supported precisions.
const (
	Precision5 = 5
	Precision6 = 6
)

// ErrTruncated is returned when the encoded string ends inside a value.
var ErrTruncated = errors.New("polyline: truncated input")

// ErrPrecision is returned for precisions other than 5 or 6.
var ErrPrecision = errors.New("polyline: unsupported precision")

func factor(precision int) (float64, error) {
	switch precision {
	case Precision5:
		return 1e5, nil
	case Precision6:
		return 1e6, nil
	default:
		return 0, ErrPrecision
	}
}

// Decode turns an encoded polyline into locations.
func Decode(encoded string, precision int) ([]geo.Location, error) {
	f, err := factor(precision)
	if err != nil {
		return nil, err
	}
	if encoded == "" {
		return nil, nil
	}

	var (
		points   []geo.Location
		index    int
		lat, lon int
	)
	for index < len(encoded) {
		dLat, next, ok := decodeValue(encoded, index)
		if !ok {
			return nil, ErrTruncated
		}
		dLon, next, ok := decodeValue(encoded, next)
		if !ok {
			return nil, ErrTruncated
		}
		index = next
		lat += dLat
		lon += dLon
		points = append(points, geo.Location{Lat: float64(lat) / f, Lon: float64(lon) / f})
	}

	return points, nil
}

// decodeValue reads one zig-zag varint starting at index.
func decodeValue(encoded string, index int) (int, int, bool) {
	shift, result := 0, 0
	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), index, true
			}
			return result >> 1, index, true
		}
	}
	return 0, index, false
}

// Encode turns locations into an encoded polyline.
func Encode(points []geo.Location, precision int) (string, error) {
	f, err := factor(precision)
	if err != nil {
		return "", err
	}
	if len(points) == 0 {
		return "", nil
	}

	buf := make([]byte, 0, len(points)*6)
	prevLat, prevLon := 0, 0
	for _, p := range points {
		lat := int(math.Round(p.Lat * f))
		lon := int(math.Round(p.Lon * f))
		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf), nil
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}
	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

const earthRadiusMeters = 6371000

// Length returns the haversine length of the path in meters.
func Length(points []geo.Location) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1], points[i])
	}
	return total
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b geo.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
