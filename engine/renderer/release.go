package renderer

// releaseStack collects cleanup funcs in acquisition order and runs them in
// reverse, so dependents are always released before what they depend on.
type releaseStack struct {
	fns []func()
}

func (s *releaseStack) push(fn func()) {
	s.fns = append(s.fns, fn)
}

func (s *releaseStack) unwind() {
	for i := len(s.fns) - 1; i >= 0; i-- {
		s.fns[i]()
	}
	s.fns = nil
}

func (s *releaseStack) len() int {
	return len(s.fns)
}
