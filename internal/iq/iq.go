// Package iq converts between complex64 sample slices and the raw
// little-endian float32 I/Q wire format used by the socket backends.
package iq

import (
	"encoding/binary"
	"errors"
	"math"
)

// BytesPerSample is the wire size of one complex64 sample.
const BytesPerSample = 8

// Decode parses little-endian float32 I/Q pairs. The buffer length must be
// a multiple of BytesPerSample.
func Decode(buf []byte) ([]complex64, error) {
	if len(buf)%BytesPerSample != 0 {
		return nil, errors.New("iq: buffer length not multiple of 8")
	}
	out := make([]complex64, len(buf)/BytesPerSample)
	for n := range out {
		off := n * BytesPerSample
		re := math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4 : off+8]))
		out[n] = complex(re, im)
	}
	return out, nil
}

// Encode renders samples as little-endian float32 I/Q pairs.
func Encode(samples []complex64) []byte {
	buf := make([]byte, len(samples)*BytesPerSample)
	for n, s := range samples {
		off := n * BytesPerSample
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], math.Float32bits(imag(s)))
	}
	return buf
}
