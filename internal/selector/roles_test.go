package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

func TestRoleName(t *testing.T) {
	tests := []struct {
		name string
		el   schemas.InteractiveElement
		want string
	}{
		{"input by id", schemas.InteractiveElement{Tag: "input", ID: "username", Type: "text"}, "usernameInput"},
		{"suffix not duplicated", schemas.InteractiveElement{Tag: "input", ID: "email-input"}, "emailInput"},
		{"camel case id preserved", schemas.InteractiveElement{Tag: "input", ID: "firstName"}, "firstNameInput"},
		{"submit input is a button", schemas.InteractiveElement{Tag: "input", Type: "submit", Name: "login"}, "loginButton"},
		{"checkbox", schemas.InteractiveElement{Tag: "input", Type: "checkbox", Name: "remember_me"}, "rememberMeCheckbox"},
		{"test id preferred", schemas.InteractiveElement{Tag: "button", TestID: "login-submit", ID: "btn"}, "loginSubmitButton"},
		{"volatile id skipped", schemas.InteractiveElement{Tag: "button", ID: ":r3:", Text: "Sign in"}, "signInButton"},
		{"link text", schemas.InteractiveElement{Tag: "a", Text: "Sign in"}, "signInLink"},
		{"aria label", schemas.InteractiveElement{Tag: "button", AriaLabel: "Close dialog"}, "closeDialogButton"},
		{"placeholder", schemas.InteractiveElement{Tag: "textarea", Placeholder: "Your message"}, "yourMessageInput"},
		{"words capped", schemas.InteractiveElement{Tag: "a", Text: "read the full terms of service"}, "readTheFullTermsLink"},
		{"long text ignored", schemas.InteractiveElement{Tag: "button", Text: "This label is far too long to be a sensible role name"}, "button7"},
		{"role button", schemas.InteractiveElement{Tag: "div", Role: "button", Text: "Menu"}, "menuButton"},
		{"leading digit", schemas.InteractiveElement{Tag: "input", Name: "2fa-code"}, "el2faCodeInput"},
		{"nothing readable", schemas.InteractiveElement{Tag: "select"}, "select7"},
		{"no tag", schemas.InteractiveElement{}, "element7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoleName(tt.el, 7))
		})
	}
}
