package compression

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/crypto"
)

const (
	MaxDepth      = 30
	MaxBufferSize = 2048

	keyMerkleTree byte = 1
)

var (
	ErrInvalidTreeParams   = errors.New("compression: invalid tree parameters")
	ErrTreeFull            = errors.New("compression: tree is full")
	ErrLeafIndexOutOfRange = errors.New("compression: leaf index out of range")
	ErrInvalidRoot         = errors.New("compression: root not found in recent roots")
	ErrLeafMismatch        = errors.New("compression: leaf contents do not match")
	ErrInvalidTreeData     = errors.New("compression: invalid tree account data")
	ErrInvalidAuthority    = errors.New("compression: invalid tree authority")
	ErrInvalidLogWrapper   = errors.New("compression: invalid log wrapper program")
	ErrInvalidInstruction  = errors.New("compression: invalid instruction data")
)

// Node is a 32-byte tree node. The empty leaf is all zeros.
type Node [32]byte

// HashPair returns keccak256(left || right).
func HashPair(left, right Node) Node {
	var out Node
	copy(out[:], ethcrypto.Keccak256(left[:], right[:]))
	return out
}

var emptyNodes = func() [MaxDepth + 1]Node {
	var out [MaxDepth + 1]Node
	for i := 1; i <= MaxDepth; i++ {
		out[i] = HashPair(out[i-1], out[i-1])
	}
	return out
}()

// EmptyRoot returns the root of an empty tree of the given depth.
func EmptyRoot(depth uint32) Node { return emptyNodes[depth] }

type LeafEntry struct {
	Index uint32
	Hash  Node
}

// Tree is the state of a merkle tree account. Only non-empty leaves are
// stored; Roots holds the most recent roots, oldest first.
type Tree struct {
	MaxDepth      uint32
	MaxBufferSize uint32
	Authority     crypto.Address
	Sequence      uint64
	NextIndex     uint32
	Roots         []Node
	Leaves        []LeafEntry
}

// NewTree returns an empty tree after validating its parameters.
func NewTree(depth, bufferSize uint32, authority crypto.Address) (*Tree, error) {
	if depth == 0 || depth > MaxDepth || bufferSize == 0 || bufferSize > MaxBufferSize {
		return nil, fmt.Errorf("%w: depth %d buffer %d", ErrInvalidTreeParams, depth, bufferSize)
	}
	return &Tree{
		MaxDepth:      depth,
		MaxBufferSize: bufferSize,
		Authority:     authority,
		Roots:         []Node{EmptyRoot(depth)},
	}, nil
}

// Capacity is the number of leaves the tree can hold.
func (t *Tree) Capacity() uint64 { return uint64(1) << t.MaxDepth }

// Leaf returns the leaf at index, or the empty leaf.
func (t *Tree) Leaf(index uint32) Node {
	i := sort.Search(len(t.Leaves), func(i int) bool { return t.Leaves[i].Index >= index })
	if i < len(t.Leaves) && t.Leaves[i].Index == index {
		return t.Leaves[i].Hash
	}
	return Node{}
}

func (t *Tree) setLeaf(index uint32, hash Node) {
	i := sort.Search(len(t.Leaves), func(i int) bool { return t.Leaves[i].Index >= index })
	found := i < len(t.Leaves) && t.Leaves[i].Index == index
	var empty Node
	switch {
	case hash == empty && found:
		t.Leaves = append(t.Leaves[:i], t.Leaves[i+1:]...)
	case hash == empty:
	case found:
		t.Leaves[i].Hash = hash
	default:
		t.Leaves = append(t.Leaves, LeafEntry{})
		copy(t.Leaves[i+1:], t.Leaves[i:])
		t.Leaves[i] = LeafEntry{Index: index, Hash: hash}
	}
}

func (t *Tree) leafLevel() map[uint32]Node {
	level := make(map[uint32]Node, len(t.Leaves))
	for _, l := range t.Leaves {
		level[l.Index] = l.Hash
	}
	return level
}

// parents hashes one level of sparse nodes into the level above it.
func parents(level map[uint32]Node, depth uint32) map[uint32]Node {
	next := make(map[uint32]Node, (len(level)+1)/2)
	for idx := range level {
		parent := idx / 2
		if _, done := next[parent]; done {
			continue
		}
		left, ok := level[parent*2]
		if !ok {
			left = emptyNodes[depth]
		}
		right, ok := level[parent*2+1]
		if !ok {
			right = emptyNodes[depth]
		}
		next[parent] = HashPair(left, right)
	}
	return next
}

// ComputeRoot hashes the stored leaves up to the root.
func (t *Tree) ComputeRoot() Node {
	level := t.leafLevel()
	if len(level) == 0 {
		return EmptyRoot(t.MaxDepth)
	}
	for depth := uint32(0); depth < t.MaxDepth; depth++ {
		level = parents(level, depth)
	}
	return level[0]
}

// Root is the current root.
func (t *Tree) Root() Node {
	if len(t.Roots) == 0 {
		return t.ComputeRoot()
	}
	return t.Roots[len(t.Roots)-1]
}

// Proof returns the sibling path for index, leaf level first.
func (t *Tree) Proof(index uint32) []Node {
	level := t.leafLevel()
	proof := make([]Node, 0, t.MaxDepth)
	for depth := uint32(0); depth < t.MaxDepth; depth++ {
		sibling, ok := level[index^1]
		if !ok {
			sibling = emptyNodes[depth]
		}
		proof = append(proof, sibling)
		level = parents(level, depth)
		index /= 2
	}
	return proof
}

// VerifyProof checks that leaf sits at index under root.
func VerifyProof(root, leaf Node, index uint32, proof []Node) bool {
	node := leaf
	for _, sibling := range proof {
		if index&1 == 0 {
			node = HashPair(node, sibling)
		} else {
			node = HashPair(sibling, node)
		}
		index >>= 1
	}
	return node == root
}

func (t *Tree) pushRoot() Node {
	root := t.ComputeRoot()
	t.Roots = append(t.Roots, root)
	if over := len(t.Roots) - int(t.MaxBufferSize); over > 0 {
		t.Roots = append([]Node(nil), t.Roots[over:]...)
	}
	t.Sequence++
	return root
}

func (t *Tree) hasRoot(root Node) bool {
	for _, r := range t.Roots {
		if r == root {
			return true
		}
	}
	return false
}

// Append writes leaf at the next free index.
func (t *Tree) Append(leaf Node) (uint32, error) {
	if uint64(t.NextIndex) >= t.Capacity() {
		return 0, ErrTreeFull
	}
	index := t.NextIndex
	t.setLeaf(index, leaf)
	t.NextIndex++
	t.pushRoot()
	return index, nil
}

// Replace swaps previous for next at index. root must be one of the recent
// roots so callers holding a slightly stale view still succeed.
func (t *Tree) Replace(root, previous, next Node, index uint32) error {
	if index >= t.NextIndex {
		return fmt.Errorf("%w: %d >= %d", ErrLeafIndexOutOfRange, index, t.NextIndex)
	}
	if !t.hasRoot(root) {
		return ErrInvalidRoot
	}
	if t.Leaf(index) != previous {
		return fmt.Errorf("%w: index %d", ErrLeafMismatch, index)
	}
	t.setLeaf(index, next)
	t.pushRoot()
	return nil
}

// EncodeTree serialises a tree account.
func EncodeTree(t *Tree) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(t)
	if err != nil {
		return nil, err
	}
	return append([]byte{keyMerkleTree}, raw...), nil
}

// DecodeTree parses a tree account.
func DecodeTree(data []byte) (*Tree, error) {
	if len(data) == 0 || data[0] != keyMerkleTree {
		return nil, ErrInvalidTreeData
	}
	t := new(Tree)
	if err := rlp.DecodeBytes(data[1:], t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTreeData, err)
	}
	return t, nil
}
