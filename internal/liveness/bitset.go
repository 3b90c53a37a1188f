package liveness

import "math/bits"

// BitSet is a compact set of variable IDs.
type BitSet struct {
	bits []uint64
}

// NewBitSet creates a BitSet that can hold values up to maxVal without growing.
func NewBitSet(maxVal int) *BitSet {
	words := (maxVal + 64) / 64
	return &BitSet{bits: make([]uint64, words)}
}

// Set adds val to the set.
func (b *BitSet) Set(val int) {
	word := val / 64
	if word >= len(b.bits) {
		b.grow(word + 1)
	}
	b.bits[word] |= 1 << (uint(val) % 64)
}

// Clear removes val from the set.
func (b *BitSet) Clear(val int) {
	word := val / 64
	if word < len(b.bits) {
		b.bits[word] &^= 1 << (uint(val) % 64)
	}
}

// Has returns true if val is in the set.
func (b *BitSet) Has(val int) bool {
	word := val / 64
	if word >= len(b.bits) {
		return false
	}
	return b.bits[word]&(1<<(uint(val)%64)) != 0
}

// Union adds all elements from other into this set.
func (b *BitSet) Union(other *BitSet) {
	if len(other.bits) > len(b.bits) {
		b.grow(len(other.bits))
	}
	for i := range other.bits {
		b.bits[i] |= other.bits[i]
	}
}

// Equal reports whether both sets hold the same elements.
func (b *BitSet) Equal(other *BitSet) bool {
	n := max(len(b.bits), len(other.bits))
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(b.bits) {
			x = b.bits[i]
		}
		if i < len(other.bits) {
			y = other.bits[i]
		}
		if x != y {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (b *BitSet) Clone() *BitSet {
	return &BitSet{bits: append([]uint64(nil), b.bits...)}
}

// ToSlice returns sorted slice of all values in the set.
func (b *BitSet) ToSlice() []int {
	var result []int
	for i, word := range b.bits {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			result = append(result, i*64+bit)
			word &= word - 1
		}
	}
	return result
}

// Count returns the number of elements in the set.
func (b *BitSet) Count() int {
	count := 0
	for _, word := range b.bits {
		count += bits.OnesCount64(word)
	}
	return count
}

// grow expands the bitset to n words.
// Callers guarantee n > len(b.bits).
func (b *BitSet) grow(n int) {
	newBits := make([]uint64, n)
	copy(newBits, b.bits)
	b.bits = newBits
}
