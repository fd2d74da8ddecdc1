package schemas_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

// TestConstants verifies that all defined constants hold their expected string values.
// These values appear in plan files and Oracle transcripts.
func TestConstants(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		constant interface{}
		expected string
	}{
		// Step actions
		{"ActionNavigate", schemas.ActionNavigate, "navigate"},
		{"ActionClick", schemas.ActionClick, "click"},
		{"ActionType", schemas.ActionType, "type"},
		{"ActionWait", schemas.ActionWait, "wait"},
		{"ActionAssert", schemas.ActionAssert, "assert"},

		// Roles
		{"RoleSystem", schemas.RoleSystem, "system"},
		{"RoleUser", schemas.RoleUser, "user"},
		{"RoleAssistant", schemas.RoleAssistant, "assistant"},
		{"RoleTool", schemas.RoleTool, "tool"},

		// Model tiers
		{"TierFast", schemas.TierFast, "fast"},
		{"TierPowerful", schemas.TierPowerful, "powerful"},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, fmt.Sprintf("%v", tt.constant))
		})
	}
}

func TestStepAction_Valid(t *testing.T) {
	assert.True(t, schemas.ActionNavigate.Valid())
	assert.True(t, schemas.ActionAssert.Valid())
	assert.False(t, schemas.StepAction("hover").Valid())
	assert.False(t, schemas.StepAction("").Valid())
}
