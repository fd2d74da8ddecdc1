package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/mocks"
)

func TestExplore_BrowsesAndMerges(t *testing.T) {
	session := mocks.NewRecordedSession(map[string]*mocks.RecordedPage{
		"http://app.test/login": {
			Observation: schemas.PageObservation{
				Title:    "Login",
				Elements: []schemas.InteractiveElement{{Tag: "input", ID: "username", Index: 1}},
			},
		},
	})

	oracle := new(mocks.MockOracle)
	oracle.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return len(req.Messages) == 2 && req.Tier == schemas.TierFast
	})).Return(mocks.Calls(schemas.ToolCall{ID: "c1", Name: "browser_navigate", Arguments: `{"url": "/login"}`}), nil).Once()
	oracle.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		last := lastMessage(req)
		return last.Role == schemas.RoleTool && strings.Contains(last.Content, "navigated")
	})).Return(mocks.Text(`{"pages": [
		{"name": "Sign in", "path": "/login"},
		{"name": "Register", "path": "/register"}
	], "forms": ["login", "register"], "summary": "Login and registration pages."}`), nil).Once()

	base := &schemas.ProjectAnalysis{
		Framework: "react",
		Pages:     []schemas.PageInfo{{Name: "Login", Path: "/login", Description: "Sign in form"}},
		Forms:     []string{"login"},
		Summary:   "A small shop.",
	}

	e, err := NewExplorer(zaptest.NewLogger(t), oracle, session, "http://app.test", 5, nil)
	require.NoError(t, err)
	got, err := e.Explore(context.Background(), "users can log in", base)
	require.NoError(t, err)

	assert.Equal(t, "react", got.Framework)
	assert.Equal(t, []schemas.PageInfo{
		{Name: "Login", Path: "/login", Description: "Sign in form"},
		{Name: "Register", Path: "/register"},
	}, got.Pages)
	assert.Equal(t, []string{"login", "register"}, got.Forms)
	assert.Equal(t, "A small shop.\n\nLogin and registration pages.", got.Summary)
	assert.Equal(t, []string{"navigate:http://app.test/login"}, session.Log())
	assert.Len(t, base.Pages, 1, "the base analysis is left untouched")
	oracle.AssertExpectations(t)
}

func TestMerge(t *testing.T) {
	assert.Equal(t, &schemas.ProjectAnalysis{Framework: schemas.FrameworkUnknown}, Merge(nil, nil))

	got := Merge(&schemas.ProjectAnalysis{Framework: schemas.FrameworkUnknown}, &schemas.ProjectAnalysis{Framework: "vue"})
	assert.Equal(t, "vue", got.Framework, "a known framework replaces unknown")
}
