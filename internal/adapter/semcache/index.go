package semcache

import (
	"encoding/binary"
	"math"

	"github.com/viterin/vek/vek32"

	"tutorgrid/internal/domain"
)

// indexed pairs an entry with its precomputed L2 norm.
type indexed struct {
	entry domain.CacheEntry
	norm  float64
}

// index holds every entry in ascending seq order. It is not safe for
// concurrent use; Cache serializes access.
type index struct {
	entries []indexed
}

func (ix *index) add(e domain.CacheEntry) {
	ix.entries = append(ix.entries, indexed{entry: e, norm: l2(e.Embedding)})
}

func (ix *index) removeKey(key string) {
	for i, it := range ix.entries {
		if it.entry.Key == key {
			ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
			return
		}
	}
}

// dropBefore removes every entry whose seq is below seq.
func (ix *index) dropBefore(seq int64) {
	i := 0
	for i < len(ix.entries) && ix.entries[i].entry.Seq < seq {
		i++
	}
	ix.entries = append(ix.entries[:0], ix.entries[i:]...)
}

// best returns the most similar entry. Entries whose dimension differs from
// query are skipped; on equal similarity the later insertion wins.
func (ix *index) best(query []float32) (domain.CacheMatch, bool) {
	qn := l2(query)
	if qn == 0 {
		return domain.CacheMatch{}, false
	}

	var (
		match domain.CacheMatch
		found bool
	)
	for _, it := range ix.entries {
		if len(it.entry.Embedding) != len(query) || it.norm == 0 {
			continue
		}
		sim := float64(vek32.Dot(query, it.entry.Embedding)) / (qn * it.norm)
		if math.IsNaN(sim) {
			continue
		}
		if !found || sim >= match.Similarity {
			match = domain.CacheMatch{Entry: it.entry, Similarity: sim}
			found = true
		}
	}
	return match, found
}

func l2(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(float64(vek32.Dot(v, v)))
}

// float32ToBytes encodes v as little-endian float32s.
func float32ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32 decodes little-endian float32s; nil when b is malformed.
func bytesToFloat32(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
