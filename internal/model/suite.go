package model

// Suite is a node of the runner's test tree. The parent link is restored by
// LinkParents after decoding and is never serialized.
type Suite struct {
	Title   string   `json:"title"`
	Root    bool     `json:"root,omitempty"`
	Pending bool     `json:"pending,omitempty"`
	Tests   []Test   `json:"tests,omitempty"`
	Suites  []*Suite `json:"suites,omitempty"`

	parent *Suite
}

// Parent returns the containing suite, or nil for the root.
func (s *Suite) Parent() *Suite {
	if s == nil {
		return nil
	}

	return s.parent
}

// LinkParents sets the Parent pointer of every descendant suite.
func (s *Suite) LinkParents() {
	if s == nil {
		return
	}

	for _, child := range s.Suites {
		if child == nil {
			continue
		}

		child.parent = s
		child.LinkParents()
	}
}

// Clone returns a deep copy of the tree rooted at s with parent links restored.
// The copy shares nothing with s, so later runner mutations cannot leak into it.
func (s *Suite) Clone() *Suite {
	if s == nil {
		return nil
	}

	root := s.cloneNode()
	root.parent = nil
	root.LinkParents()

	return root
}

func (s *Suite) cloneNode() *Suite {
	clone := &Suite{
		Title:   s.Title,
		Root:    s.Root,
		Pending: s.Pending,
		Tests:   append([]Test(nil), s.Tests...),
	}

	for _, child := range s.Suites {
		if child == nil {
			continue
		}

		clone.Suites = append(clone.Suites, child.cloneNode())
	}

	return clone
}

// IsTopLevel reports whether s is a direct child of the root suite.
func (s *Suite) IsTopLevel() bool {
	return s != nil && !s.Root && (s.parent == nil || s.parent.Root)
}
