package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardUnsavedChanges(t *testing.T) {
	state := "v1"
	g := NewGuard(func() string { return state })
	assert.False(t, g.HasUnsavedChanges(), "initial snapshot counts as committed")

	state = "v2"
	assert.True(t, g.HasUnsavedChanges())

	g.MarkAsSaved()
	assert.False(t, g.HasUnsavedChanges())
	// marking saved twice changes nothing
	g.MarkAsSaved()
	assert.False(t, g.HasUnsavedChanges())
}

type navSpy struct {
	proceeded, saved, stayed int
}

func (n *navSpy) callbacks() (func(), func(), func()) {
	return func() { n.proceeded++ }, func() { n.saved++ }, func() { n.stayed++ }
}

func TestConfirmNavigationCleanProceeds(t *testing.T) {
	g := NewGuard(func() string { return "same" })
	spy := &navSpy{}
	proceed, save, stay := spy.callbacks()

	promptCalled := false
	g.ConfirmNavigation(func() Decision { promptCalled = true; return DecisionStay }, proceed, save, stay)

	assert.False(t, promptCalled, "no prompt without unsaved changes")
	assert.Equal(t, 1, spy.proceeded)
	assert.Equal(t, 0, spy.saved)
	assert.Equal(t, 0, spy.stayed)
}

func TestConfirmNavigationDecisions(t *testing.T) {
	cases := []struct {
		name     string
		decision Decision
		proceed  int
		save     int
		stay     int
	}{
		{"discard", DecisionDiscard, 1, 0, 0},
		{"save then proceed", DecisionSave, 1, 1, 0},
		{"stay", DecisionStay, 0, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := "dirty"
			g := NewGuard(func() string { return state })
			state = "dirtier" // diverge from the committed snapshot
			spy := &navSpy{}
			proceed, save, stay := spy.callbacks()

			g.ConfirmNavigation(func() Decision { return tc.decision }, proceed, save, stay)

			assert.Equal(t, tc.proceed, spy.proceeded)
			assert.Equal(t, tc.save, spy.saved)
			assert.Equal(t, tc.stay, spy.stayed)
		})
	}
}

func TestConfirmNavigationSaveCommits(t *testing.T) {
	state := "v1"
	g := NewGuard(func() string { return state })
	state = "v2"

	g.ConfirmNavigation(func() Decision { return DecisionSave }, func() {}, func() {}, nil)
	assert.False(t, g.HasUnsavedChanges(), "save decision commits the snapshot")
}
