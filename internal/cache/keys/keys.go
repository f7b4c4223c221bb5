// Package keys derives cache keys from rectangle sets.
package keys

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/rectrel/internal/core/model"
	"github.com/mohammed-shakir/rectrel/internal/engine"
)

const prefix = "rectrel:v1"

// Fingerprint hashes the ordered rectangles of s. Input order matters because
// several results are reported in input order.
func Fingerprint(s model.Set) uint64 {
	d := xxhash.New()
	var buf [40]byte
	for i := range s.Len() {
		r := s.At(i)
		binary.LittleEndian.PutUint64(buf[0:], uint64(r.ID))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(r.X1))
		binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(r.Y1))
		binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(r.X2))
		binary.LittleEndian.PutUint64(buf[32:], math.Float64bits(r.Y2))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Analysis builds the key for a full analysis of s under opts, optionally
// including a query point.
func Analysis(s model.Set, opts engine.Options, p *model.Point) string {
	pt := "none"
	if p != nil {
		pt = fmt.Sprintf("%016x,%016x", math.Float64bits(p.X), math.Float64bits(p.Y))
	}
	return fmt.Sprintf("%s:%s:%s:eps=%016x:n=%d:pt=%s:h=%016x",
		prefix,
		opts.Overlap,
		opts.Grouping,
		math.Float64bits(opts.Epsilon),
		s.Len(),
		pt,
		Fingerprint(s),
	)
}

// Short is the hash part of a key, for log fields.
func Short(s model.Set) string {
	return fmt.Sprintf("%016x", Fingerprint(s))
}
