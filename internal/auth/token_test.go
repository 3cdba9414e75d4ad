package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "none", want: ""},
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer abc"}, want: "abc"},
		{name: "bearer lowercase scheme", headers: map[string]string{"Authorization": "bearer abc"}, want: "abc"},
		{name: "control header", headers: map[string]string{ControlTokenHeader: " xyz "}, want: "xyz"},
		{name: "bearer wins", headers: map[string]string{"Authorization": "Bearer abc", ControlTokenHeader: "xyz"}, want: "abc"},
		{name: "basic falls back", headers: map[string]string{"Authorization": "Basic Zm9v", ControlTokenHeader: "xyz"}, want: "xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ExtractToken(r))
		})
	}
}

func TestAuthorizeToken(t *testing.T) {
	assert.True(t, AuthorizeToken("secret", "secret"))
	assert.False(t, AuthorizeToken("secret", "other"))
	assert.False(t, AuthorizeToken("", "secret"))
	assert.False(t, AuthorizeToken("secret", ""))
	assert.False(t, AuthorizeToken("", ""))
}

func TestAuthorizeRequest_NilRequest(t *testing.T) {
	assert.False(t, AuthorizeRequest(nil, "secret"))
}
