package generator

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name        string
		overwrite   bool
		interactive bool
		want        TargetStrategy
	}{
		{"overwrite wins", true, true, &ForceStrategy{}},
		{"overwrite", true, false, &ForceStrategy{}},
		{"interactive", false, true, &InteractiveStrategy{}},
		{"non-interactive keeps", false, false, &KeepStrategy{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.IsType(t, tt.want, selectStrategy(tt.overwrite, tt.interactive))
		})
	}
}

func TestResolver_Force(t *testing.T) {
	r := NewResolver(true, false)
	got, err := r.ResolveTarget(&Summary{Target: "app"})
	require.NoError(t, err)
	assert.Equal(t, Replace, got)
}

func TestResolver_Keep(t *testing.T) {
	r := NewResolverWithStrategy(&KeepStrategy{})
	got, err := r.ResolveTarget(&Summary{Target: "app"})
	require.NoError(t, err)
	assert.Equal(t, Keep, got)
}

func TestTargetMenuModel_Navigation(t *testing.T) {
	m := newTargetMenuModel(&Summary{Target: "/does/not/exist"})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})

	result := next.(targetMenuModel)
	require.NotNil(t, result.selected)
	assert.Equal(t, Replace, *result.selected)
	assert.NotNil(t, cmd)
}

func TestTargetMenuModel_QuitWithoutSelection(t *testing.T) {
	m := newTargetMenuModel(&Summary{Target: "/does/not/exist"})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, next.(targetMenuModel).selected)
}

func TestTargetMenuModel_View(t *testing.T) {
	m := newTargetMenuModel(&Summary{Target: "billing-api", Changes: []Change{{Path: "a", Kind: Added}}})
	view := m.View()

	assert.Contains(t, view, "billing-api")
	assert.Contains(t, view, "1 added")
	assert.Contains(t, view, "Replace directory with generated project")
}

func TestMapChoiceToResolution(t *testing.T) {
	assert.Equal(t, ShowChanges, mapChoiceToResolution(0))
	assert.Equal(t, Keep, mapChoiceToResolution(1))
	assert.Equal(t, Replace, mapChoiceToResolution(2))
	assert.Equal(t, Cancel, mapChoiceToResolution(3))
	assert.Equal(t, Cancel, mapChoiceToResolution(42))
}

func TestSummaryViewerModel(t *testing.T) {
	m := newSummaryViewerModel(&Summary{Target: "app", Changes: []Change{{Path: "src/main.ts", Kind: Added, Size: 4}}})
	assert.Equal(t, "Initializing...", m.View())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	view := next.View()
	assert.Contains(t, view, "src/main.ts")
	assert.Contains(t, view, "Changes: app")
}
