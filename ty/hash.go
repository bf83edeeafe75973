package ty

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
)

// hasher accumulates a structural FNV-1a hash. Interned children contribute their id,
// so hashing a node never walks below its direct children.
type hasher struct {
	h   hash.Hash64
	buf []byte
}

func newHasher(tag byte) *hasher {
	h := &hasher{h: fnv.New64a(), buf: make([]byte, 0, 8)}
	h.byte(tag)
	return h
}

func (h *hasher) byte(b byte) {
	_, _ = h.h.Write([]byte{b})
}

func (h *hasher) u64(n uint64) {
	h.buf = binary.LittleEndian.AppendUint64(h.buf[:0], n)
	_, _ = h.h.Write(h.buf)
}

func (h *hasher) str(s string) {
	h.u64(uint64(len(s)))
	_, _ = h.h.Write([]byte(s))
}

func (h *hasher) sum() uint64 { return h.h.Sum64() }
