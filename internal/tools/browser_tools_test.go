// internal/tools/browser_tools_test.go
package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/agent"
	"github.com/xkilldash9x/uiforge/internal/mocks"
)

const baseURL = "http://localhost:3000"

func newBrowserRegistry(t *testing.T) (*Registry, *mocks.RecordedSession) {
	t.Helper()
	session := mocks.NewRecordedSession(map[string]*mocks.RecordedPage{
		baseURL + "/login": {
			Observation: schemas.PageObservation{
				Title: "Login",
				Elements: []schemas.InteractiveElement{
					{Tag: "input", ID: "user", Index: 1},
					{Tag: "button", ID: "submit", Text: "Sign in", Index: 1},
				},
			},
			Locators: map[string]string{"#user": "", "#submit": "Sign in"},
			Links:    map[string]string{"#submit": baseURL + "/dashboard"},
		},
		baseURL + "/dashboard": {Observation: schemas.PageObservation{Title: "Dashboard"}},
	})
	r := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, NewBrowserTools(session, baseURL).Register(r))
	return r, session
}

func call(name, args string) schemas.ToolCall {
	return schemas.ToolCall{ID: name + "-1", Name: name, Arguments: args}
}

func TestBrowserTools_Flow(t *testing.T) {
	r, session := newBrowserRegistry(t)
	ctx := context.Background()

	res := r.Execute(ctx, call(ToolBrowserNavigate, `{"url":"/login"}`))
	require.True(t, res.IsOk(), res.Error())
	var nav actionResult
	require.NoError(t, res.Decode(&nav))
	assert.Equal(t, baseURL+"/login", nav.URL)

	res = r.Execute(ctx, call(ToolBrowserExtract, `{}`))
	var obs schemas.PageObservation
	require.NoError(t, res.Decode(&obs))
	assert.Equal(t, "Login", obs.Title)
	assert.Len(t, obs.Elements, 2)

	assert.True(t, r.Execute(ctx, call(ToolBrowserType, `{"locator":"#user","text":"alice"}`)).IsOk())
	assert.True(t, r.Execute(ctx, call(ToolBrowserClick, `{"locator":"#submit"}`)).IsOk())
	assert.True(t, r.Execute(ctx, call(ToolBrowserWait, `{"ms":50}`)).IsOk())

	res = r.Execute(ctx, call(ToolBrowserShot, `{"name":"after-login"}`))
	var shot actionResult
	require.NoError(t, res.Decode(&shot))
	assert.Equal(t, "after-login.png", shot.Path)

	assert.Equal(t, []string{
		"navigate:" + baseURL + "/login",
		"type:#user=alice",
		"click:#submit",
		"wait:50ms",
		"screenshot:after-login",
	}, session.Log())
}

func TestBrowserTools_Errors(t *testing.T) {
	r, _ := newBrowserRegistry(t)
	ctx := context.Background()
	require.True(t, r.Execute(ctx, call(ToolBrowserNavigate, `{"url":"/login"}`)).IsOk())

	tests := []struct {
		name string
		call schemas.ToolCall
		code agent.ErrorCode
	}{
		{"missing element", call(ToolBrowserClick, `{"locator":"#nope"}`), agent.ErrCodeElementNotFound},
		{"wait timeout", call(ToolBrowserWait, `{"locator":"#spinner"}`), agent.ErrCodeTimeoutError},
		{"wait without target", call(ToolBrowserWait, `{}`), agent.ErrCodeInvalidParameters},
		{"unreachable page", call(ToolBrowserNavigate, `{"url":"/missing"}`), agent.ErrCodeNavigationError},
		{"empty url", call(ToolBrowserNavigate, `{"url":" "}`), agent.ErrCodeInvalidParameters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Execute(ctx, tt.call)
			assert.Equal(t, string(tt.code), res.Code(), res.Error())
		})
	}
}
