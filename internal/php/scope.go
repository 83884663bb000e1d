package php

// AmbientState is the lexical context at one point of a document. It is a
// value; callers get a fresh copy from ScopeStack.State for every parse or
// resolve call.
type AmbientState struct {
	Namespace string `json:"namespace,omitempty"`
	// EnclosingType is the canonical name of the innermost class-like
	// declaration.
	EnclosingType string `json:"enclosing_type,omitempty"`
	InClassBody   bool   `json:"in_class_body,omitempty"`
}

// ScopeStack produces AmbientState values while a document is walked in
// order. The zero value is ready to use.
type ScopeStack struct {
	cur    AmbientState
	frames []AmbientState
}

// State returns the current ambient state.
func (s *ScopeStack) State() AmbientState {
	return s.cur
}

// SetNamespace switches the current namespace and forgets the enclosing
// type. An empty namespace means the global namespace.
func (s *ScopeStack) SetNamespace(ns string) {
	s.cur.Namespace = ns
	s.cur.EnclosingType = ""
}

// EnterClass opens the body of the class-like declaration with the given
// canonical name.
func (s *ScopeStack) EnterClass(name string) {
	s.frames = append(s.frames, s.cur)
	s.cur.EnclosingType = name
	s.cur.InClassBody = true
}

// LeaveClass closes the innermost class body. Closing a nested body makes
// the outer type enclosing again. Closing the outermost body keeps its type
// so members documented after it at the same level still find their owner.
func (s *ScopeStack) LeaveClass() {
	if len(s.frames) == 0 {
		s.cur.InClassBody = false
		return
	}
	prev := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.cur.InClassBody = prev.InClassBody
	if prev.InClassBody {
		s.cur.EnclosingType = prev.EnclosingType
	}
}

// Depth is the number of open class bodies.
func (s *ScopeStack) Depth() int {
	return len(s.frames)
}

// Reset returns the stack to the state at the start of a document.
func (s *ScopeStack) Reset() {
	s.cur = AmbientState{}
	s.frames = s.frames[:0]
}
