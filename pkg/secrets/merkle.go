package secrets

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// MerkleTree holds every level of a binary keccak tree, leaves first.
// An odd node at any level is combined with a duplicate of itself; the
// on-chain verifier uses the same rule, so it must not change.
type MerkleTree struct {
	Levels [][][]byte
}

// ProofStep is one sibling on the path from a leaf to the root. Left is true
// when the sibling sits to the left of the running hash.
type ProofStep struct {
	Sibling string `json:"sibling"`
	Left    bool   `json:"left"`
}

// Root returns the tree root as 0x-prefixed hex.
func (t *MerkleTree) Root() string {
	top := t.Levels[len(t.Levels)-1]
	return "0x" + hex.EncodeToString(top[0])
}

// BuildMerkleTree builds a binary tree by pairwise keccak256 combine over the
// given 32-byte leaf hashes. A single-leaf tree has root equal to that leaf.
func BuildMerkleTree(leafHashes []string) (*MerkleTree, error) {
	if len(leafHashes) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree with zero leaves")
	}

	leaves := make([][]byte, len(leafHashes))
	for i, l := range leafHashes {
		b, err := decodeSecret(l)
		if err != nil {
			return nil, fmt.Errorf("leaf %d: %v", i, err)
		}
		leaves[i] = b
	}

	levels := [][][]byte{leaves}
	for current := leaves; len(current) > 1; {
		next := make([][]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left // odd node: duplicate as its own sibling
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, crypto.Keccak256(left, right))
		}
		levels = append(levels, next)
		current = next
	}

	return &MerkleTree{Levels: levels}, nil
}

// GenerateMerkleProof returns the sibling path for the given leaf, or nil if
// the leaf is not in the tree.
func GenerateMerkleProof(tree *MerkleTree, leaf string) []ProofStep {
	target, err := decodeSecret(leaf)
	if err != nil {
		return nil
	}

	idx := -1
	for i, l := range tree.Levels[0] {
		if string(l) == string(target) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	proof := make([]ProofStep, 0, len(tree.Levels)-1)
	for level := 0; level < len(tree.Levels)-1; level++ {
		nodes := tree.Levels[level]
		var sibling []byte
		var left bool
		if idx%2 == 0 {
			if idx+1 < len(nodes) {
				sibling = nodes[idx+1]
			} else {
				sibling = nodes[idx] // duplicated odd node
			}
			left = false
		} else {
			sibling = nodes[idx-1]
			left = true
		}
		proof = append(proof, ProofStep{
			Sibling: "0x" + hex.EncodeToString(sibling),
			Left:    left,
		})
		idx /= 2
	}
	return proof
}

// VerifyMerkleProof recombines leaf and proof using the left/right indicator
// bits and compares the result with the expected root.
func VerifyMerkleProof(leaf string, proof []ProofStep, expectedRoot string) bool {
	running, err := decodeSecret(leaf)
	if err != nil {
		return false
	}
	for _, step := range proof {
		sib, err := decodeSecret(step.Sibling)
		if err != nil {
			return false
		}
		if step.Left {
			running = crypto.Keccak256(sib, running)
		} else {
			running = crypto.Keccak256(running, sib)
		}
	}
	return strings.EqualFold("0x"+hex.EncodeToString(running), expectedRoot)
}
