// utils/merkle.go
package utils

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Keccak256 is the Ethereum hash (legacy Keccak, not NIST SHA3).
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(addr string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if len(b) != 20 {
		return nil, fmt.Errorf("invalid address %q: want 20 bytes, got %d", addr, len(b))
	}
	return b, nil
}

// ClaimLeaf is keccak256(abi.encode(address, uint256 amount)).
func ClaimLeaf(address string, amount int64) ([]byte, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, fmt.Errorf("negative claim amount %d", amount)
	}
	encoded := make([]byte, 64)
	copy(encoded[32-len(addr):32], addr)
	big.NewInt(amount).FillBytes(encoded[32:])
	return Keccak256(encoded), nil
}

// MerkleTree is a sorted-pair keccak tree. Leaves are used as given; an odd
// node at the end of a layer is carried up unchanged.
type MerkleTree struct {
	layers [][][]byte
}

func NewMerkleTree(leaves [][]byte) *MerkleTree {
	t := &MerkleTree{}
	if len(leaves) == 0 {
		return t
	}
	layer := make([][]byte, len(leaves))
	copy(layer, leaves)
	t.layers = append(t.layers, layer)

	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, hashPair(layer[i], layer[i+1]))
		}
		t.layers = append(t.layers, next)
		layer = next
	}
	return t
}

func hashPair(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return Keccak256(a, b)
}

// Root is nil for an empty tree.
func (t *MerkleTree) Root() []byte {
	if len(t.layers) == 0 {
		return nil
	}
	return t.layers[len(t.layers)-1][0]
}

// Proof returns the sibling hashes from leaf index up to the root.
func (t *MerkleTree) Proof(index int) [][]byte {
	if len(t.layers) == 0 || index < 0 || index >= len(t.layers[0]) {
		return nil
	}
	var proof [][]byte
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index /= 2
	}
	return proof
}

// VerifyProof recomputes the root from leaf and proof.
func VerifyProof(leaf, root []byte, proof [][]byte) bool {
	node := leaf
	for _, p := range proof {
		node = hashPair(node, p)
	}
	return bytes.Equal(node, root)
}

// HexEncode renders b as 0x-prefixed lowercase hex.
func HexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// HexDecode accepts hex with or without the 0x prefix.
func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}
