package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	domainerrors "github.com/dipoleapp/dipole-server/internal/errors"
	"github.com/dipoleapp/dipole-server/internal/validation"
)

type highlightRequest struct {
	Text     string `json:"text" validate:"required,max=10000"`
	CFIRange string `json:"cfiRange" validate:"required"`
	Color    string `json:"color" validate:"omitempty,oneof=yellow"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	req := highlightRequest{
		Text:     "Call me Ishmael.",
		CFIRange: "epubcfi(/6/4!/4/2,/1:0,/1:16)",
		Color:    "yellow",
	}

	assert.NoError(t, v.Validate(req))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name       string
		req        highlightRequest
		wantErrMsg string
	}{
		{
			name: "missing required field",
			req: highlightRequest{
				Text:     "Call me Ishmael.",
				CFIRange: "",
			},
			wantErrMsg: "cfiRange",
		},
		{
			name: "text too long",
			req: highlightRequest{
				Text:     string(make([]byte, 10001)),
				CFIRange: "epubcfi(/6/4!/4/2,/1:0,/1:16)",
			},
			wantErrMsg: "text",
		},
		{
			name: "unknown color",
			req: highlightRequest{
				Text:     "Call me Ishmael.",
				CFIRange: "epubcfi(/6/4!/4/2,/1:0,/1:16)",
				Color:    "chartreuse",
			},
			wantErrMsg: "color",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			assert.Error(t, err)

			var domainErr *domainerrors.Error
			if assert.True(t, errors.As(err, &domainErr)) {
				assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
				details, ok := domainErr.Details.(map[string]string)
				if assert.True(t, ok) {
					assert.Contains(t, details, tt.wantErrMsg)
				}
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := highlightRequest{
		Text:     "",
		CFIRange: "epubcfi(/6/4!/4/2,/1:0,/1:16)",
	}

	err := v.Validate(req)
	assert.Error(t, err)

	var domainErr *domainerrors.Error
	assert.True(t, errors.As(err, &domainErr))
	details := domainErr.Details.(map[string]string)

	// Uses the JSON tag name "text", not the struct field name "Text".
	assert.Contains(t, details, "text")
	assert.NotContains(t, details, "Text")
}
