package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrEmptyLeaves is returned when a tree is built over zero leaves.
var ErrEmptyLeaves = errors.New("cannot build merkle tree from empty leaf list")

// NewTree builds a binary merkle tree from the given leaf digests.
// Leaf order is caller-determined and must be stable; two builds over the
// same ordered sequence produce byte-identical roots.
//
// Pairs are combined with sorted-pair hashing: keccak256(min(a,b) || max(a,b))
// where min/max compare the two digests bytewise. This makes verification
// independent of left/right position, so proofs carry no direction flags.
// If there's an odd number of nodes at any level, the last node is paired
// with itself.
func NewTree(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyLeaves
	}

	// Copy the input so later caller mutation cannot corrupt the tree
	level0 := make([][32]byte, len(leaves))
	copy(level0, leaves)

	// Build tree levels bottom-up
	levels := make([][][32]byte, 0)
	levels = append(levels, level0)

	currentLevel := level0
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]

			// If odd number of nodes, pair the last one with itself
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}

			parent := hashPair(left, right)
			nextLevel = append(nextLevel, parent)
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &Tree{
		Leaves: level0,
		Root:   currentLevel[0],
		levels: levels,
	}, nil
}

// Proof returns the merkle proof for the leaf at the given index: the
// sibling digests along the path from leaf to root, one per level. The
// self-duplicate counts as the sibling when the node is the odd one out.
// A single-leaf tree yields an empty proof.
func (t *Tree) Proof(leafIndex int) ([][32]byte, error) {
	if leafIndex < 0 || leafIndex >= len(t.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves))
	}

	proof := make([][32]byte, 0, len(t.levels)-1)
	index := leafIndex

	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		// Sibling of an even index is to the right, of an odd index to the left
		siblingIndex := index + 1
		if index%2 == 1 {
			siblingIndex = index - 1
		}

		// Odd node out: its sibling is itself
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
		}

		proof = append(proof, currentLevel[siblingIndex])

		// Move to parent index in next level
		index = index / 2
	}

	return proof, nil
}

// Verify recomputes a root from a leaf digest and a proof and compares it to
// the expected root. It needs no tree instance and no position information:
// sorted-pair hashing fixes the combination order at every step.
func Verify(leaf [32]byte, proof [][32]byte, root [32]byte) bool {
	currentHash := leaf
	for _, sibling := range proof {
		currentHash = hashPair(currentHash, sibling)
	}
	return currentHash == root
}

// hashPair computes keccak256(min(a,b) || max(a,b)) for two 32-byte digests.
func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}

	data := make([]byte, 64)
	copy(data[0:32], a[:])
	copy(data[32:64], b[:])

	hash := crypto.Keccak256Hash(data)
	return [32]byte(hash)
}
