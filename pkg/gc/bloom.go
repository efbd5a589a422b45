package gc

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
)

// falsePositiveRate is the bloom filter's target false-positive rate. At
// this rate each garbage sweep reclaims about 95% of collectible objects;
// repeated runs converge on full collection.
const falsePositiveRate = 0.05

// numHashes is fixed at 4, the design this package settles on between the
// two subtly different constants the original sources used (one derived k
// from N, the other hardcoded it).
const numHashes = 4

// bloomFilter is the reachability sketch built in a sweep's first pass: one
// bit set per (salt, reachable objid) pair. It never has false negatives
// for objects actually added to it, so testing an object against it can
// prove non-membership (garbage) but never prove membership (reachable).
type bloomFilter struct {
	bits  []byte
	m     uint64
	salts [numHashes]*big.Int
}

// newBloomFilter sizes a filter for n elements at falsePositiveRate and
// draws numHashes fresh cryptographically random 256-bit salts, so that an
// adversary (or an unlucky run) cannot predict or replay which objects will
// collide across runs.
func newBloomFilter(n int64) (*bloomFilter, error) {
	bf := &bloomFilter{}
	if n <= 0 {
		return bf, nil
	}

	m := uint64(math.Ceil(float64(n) * -math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	bf.m = m
	bf.bits = make([]byte, (m+7)/8)

	for i := range bf.salts {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("gc: generate salt: %w", err)
		}
		bf.salts[i] = new(big.Int).SetBytes(buf)
	}
	return bf, nil
}

// bitPositions returns the numHashes bit indices an object id maps to,
// interpreting the id as a little-endian integer per spec.
func (bf *bloomFilter) bitPositions(objID []byte) []uint64 {
	x := new(big.Int).SetBytes(reverseBytes(objID))
	mBig := new(big.Int).SetUint64(bf.m)
	positions := make([]uint64, len(bf.salts))
	for i, salt := range bf.salts {
		h := new(big.Int).Xor(salt, x)
		h.Mod(h, mBig)
		positions[i] = h.Uint64()
	}
	return positions
}

// add marks objID as reachable.
func (bf *bloomFilter) add(objID []byte) {
	if bf.m == 0 {
		return
	}
	for _, pos := range bf.bitPositions(objID) {
		bf.bits[pos/8] |= 1 << (pos % 8)
	}
}

// maybeReachable reports whether objID might be reachable. false is a
// guarantee (the object is provably garbage); true only means "maybe".
func (bf *bloomFilter) maybeReachable(objID []byte) bool {
	if bf.m == 0 {
		return false
	}
	for _, pos := range bf.bitPositions(objID) {
		if bf.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
