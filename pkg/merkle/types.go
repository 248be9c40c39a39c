package merkle

// Tree is a binary merkle tree built over 32-byte leaf digests.
// The tree uses keccak256 hashing for Solidity compatibility.
type Tree struct {
	// Leaves contains the leaf digests in construction order
	Leaves [][32]byte

	// Root is the merkle root digest
	Root [32]byte

	// levels stores all tree levels for proof generation
	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}
