package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeStack(t *testing.T) {
	t.Parallel()
	var s ScopeStack
	assert.Equal(t, AmbientState{}, s.State())

	s.SetNamespace("App")
	s.EnterClass(`App\Widget`)
	assert.Equal(t, AmbientState{Namespace: "App", EnclosingType: `App\Widget`, InClassBody: true}, s.State())
	assert.Equal(t, 1, s.Depth())

	s.EnterClass(`App\Inner`)
	assert.Equal(t, `App\Inner`, s.State().EnclosingType)
	s.LeaveClass()
	assert.Equal(t, AmbientState{Namespace: "App", EnclosingType: `App\Widget`, InClassBody: true}, s.State())

	s.LeaveClass()
	assert.Equal(t, AmbientState{Namespace: "App", EnclosingType: `App\Widget`}, s.State())
	assert.Equal(t, 0, s.Depth())

	s.SetNamespace("Other")
	assert.Equal(t, AmbientState{Namespace: "Other"}, s.State())

	s.EnterClass(`Other\Thing`)
	s.Reset()
	assert.Equal(t, AmbientState{}, s.State())
	assert.Equal(t, 0, s.Depth())
}

func TestScopeStack_StateIsACopy(t *testing.T) {
	t.Parallel()
	var s ScopeStack
	s.SetNamespace("App")
	st := s.State()
	s.SetNamespace("Other")
	assert.Equal(t, "App", st.Namespace)
}

func TestScopeStack_NestedBodiesPop(t *testing.T) {
	t.Parallel()
	var s ScopeStack
	s.SetNamespace("App")

	s.EnterClass(`App\Outer`)
	s.EnterClass(`App\Middle`)
	s.EnterClass(`App\Inner`)
	s.LeaveClass()
	assert.Equal(t, `App\Middle`, s.State().EnclosingType)
	s.LeaveClass()
	assert.Equal(t, `App\Outer`, s.State().EnclosingType)
	assert.True(t, s.State().InClassBody)
	assert.Equal(t, 1, s.Depth())
}

func TestScopeStack_LeaveWithoutEnter(t *testing.T) {
	t.Parallel()
	var s ScopeStack
	s.SetNamespace("App")
	s.LeaveClass()
	assert.Equal(t, AmbientState{Namespace: "App"}, s.State())
}
