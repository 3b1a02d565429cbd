// Package polyline encodes and decodes Google encoded polylines as [lat, lon] pairs.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm.
package polyline

import (
	"errors"
	"math"
)

// Common precisions: 5 for Google and OpenRouteService, 6 for OSRM/Valhalla.
const (
	Precision5 = 5
	Precision6 = 6
)

// ErrTruncated is returned when the input ends in the middle of a value.
var ErrTruncated = errors.New("polyline: truncated input")

// Pair is a [lat, lon] point, the shape map frontends draw directly.
type Pair = [2]float64

// Decode decodes a precision-5 polyline.
func Decode(encoded string) ([]Pair, error) {
	return DecodePrecision(encoded, Precision5)
}

// DecodePrecision decodes a polyline whose values were scaled by 10^precision.
func DecodePrecision(encoded string, precision int) ([]Pair, error) {
	if encoded == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	pairs := make([]Pair, 0, len(encoded)/4)

	var lat, lon int
	for i := 0; i < len(encoded); {
		dLat, next, err := decodeValue(encoded, i)
		if err != nil {
			return nil, err
		}
		dLon, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lon += dLon
		pairs = append(pairs, Pair{float64(lat) / factor, float64(lon) / factor})
	}

	return pairs, nil
}

func decodeValue(encoded string, i int) (int, int, error) {
	var result, shift int
	for {
		if i >= len(encoded) {
			return 0, i, ErrTruncated
		}
		b := int(encoded[i]) - 63
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

// Encode encodes pairs at precision 5.
func Encode(pairs []Pair) string {
	return EncodePrecision(pairs, Precision5)
}

// EncodePrecision encodes pairs scaled by 10^precision.
func EncodePrecision(pairs []Pair, precision int) string {
	if len(pairs) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	buf := make([]byte, 0, len(pairs)*8)

	var prevLat, prevLon int
	for _, p := range pairs {
		lat := int(math.Round(p[0] * factor))
		lon := int(math.Round(p[1] * factor))
		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}

	return string(buf)
}

func encodeValue(buf []byte, v int) []byte {
	if v < 0 {
		v = ^(v << 1)
	} else {
		v <<= 1
	}
	for v >= 0x20 {
		buf = append(buf, byte((v&0x1f)|0x20)+63)
		v >>= 5
	}
	return append(buf, byte(v)+63)
}
