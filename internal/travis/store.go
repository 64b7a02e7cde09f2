package travis

import "fmt"

// Store holds the blocks of a log while it is parsed. Numbered folds of one
// group ("git.1", "git.2", ...) share a single block and must arrive in order.
type Store struct {
	tree *Tree
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tree: NewTree()}
}

// Tree exposes the blocks in document order.
func (s *Store) Tree() *Tree { return s.tree }

// Len is the number of blocks.
func (s *Store) Len() int { return s.tree.Len() }

// Last returns the most recently appended block, or nil.
func (s *Store) Last() *Block {
	b, _ := s.tree.Last().(*Block)
	return b
}

// At returns the block at position i. Negative positions count from the end.
func (s *Store) At(i int) *Block {
	n, ok := s.tree.At(i)
	if !ok {
		return nil
	}
	b, _ := n.(*Block)
	return b
}

// Lookup finds a block by name or by a numbered name of its group.
func (s *Store) Lookup(name string) (*Block, bool) {
	return s.tree.Block(name)
}

// Append adds a new block. A block name may only be used once.
func (s *Store) Append(b *Block) error {
	if err := s.tree.Append(b); err != nil {
		return fmt.Errorf("block %w", err)
	}
	return nil
}

// Get returns the block for name. For a numbered name "g.N" with N > 1 the
// group's block must already hold N-1 parts and be the last block; "g.1"
// creates the group. When the block does not exist and create is set, a new
// block of the given kind is appended.
func (s *Store) Get(name string, create bool, kind Kind) (*Block, error) {
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	if b, ok := s.tree.Get(n.Key()); ok {
		block, isBlock := b.(*Block)
		if !isBlock {
			return nil, fmt.Errorf("%s is not a block", n.Key())
		}
		if n.Numbered() {
			if n.Seq == 1 {
				return nil, fmt.Errorf("%s repeats the first part of %s", name, n.Group)
			}
			if got := block.slots(); got != n.Seq-1 {
				return nil, fmt.Errorf("%s out of sequence: %s has %d parts", name, n.Group, got)
			}
			if last := s.Last(); last != block {
				return nil, fmt.Errorf("%s resumes %s after %s", name, n.Group, last.Name)
			}
		}
		return block, nil
	}
	if !create {
		return nil, fmt.Errorf("no block %s", name)
	}
	if n.Numbered() && n.Seq != 1 {
		return nil, fmt.Errorf("%s before %s.1", name, n.Group)
	}
	block := NewBlock(n.Key(), kind)
	if err := s.Append(block); err != nil {
		return nil, err
	}
	return block, nil
}
