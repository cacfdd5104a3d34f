package client

import (
	"github.com/pkg/errors"

	crank25519 "crank25519.mleku.dev"
	"crank25519.mleku.dev/dsl"
)

// Points decodes every result region as an extended point
func (r *Result) Points() ([]*crank25519.EdwardsPoint, error) {
	if r.Layout.Kind != dsl.ResultPoint {
		return nil, errors.Errorf("results hold %s, not points", r.Layout.Kind)
	}
	out := make([]*crank25519.EdwardsPoint, len(r.Regions))
	for i, b := range r.Regions {
		p, err := crank25519.PointFromBytes(b)
		if err != nil {
			return nil, errors.WithMessagef(err, "result %d", i)
		}
		out[i] = p
	}
	return out, nil
}

// Ristretto returns the canonical Ristretto encoding of every point result
func (r *Result) Ristretto() ([]crank25519.CompressedRistretto, error) {
	points, err := r.Points()
	if err != nil {
		return nil, err
	}
	out := make([]crank25519.CompressedRistretto, len(points))
	for i, p := range points {
		out[i] = crank25519.CompressRistretto(p)
	}
	return out, nil
}

// Encodings returns 32-byte RFC 8032 encodings. Point results are compressed;
// encoding results are returned as stored.
func (r *Result) Encodings() ([][32]byte, error) {
	out := make([][32]byte, len(r.Regions))
	switch r.Layout.Kind {
	case dsl.ResultEdwardsEncoding:
		for i, b := range r.Regions {
			if len(b) != len(out[i]) {
				return nil, errors.Errorf("result %d is %d bytes", i, len(b))
			}
			copy(out[i][:], b)
		}
	default:
		points, err := r.Points()
		if err != nil {
			return nil, err
		}
		for i, p := range points {
			out[i] = p.Compress()
		}
	}
	return out, nil
}
