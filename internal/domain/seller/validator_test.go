package seller

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialsValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		login    string
		password string
		wantErr  string
	}{
		{name: "valid", login: "shop.main@city", password: "counter42"},
		{name: "login too long", login: strings.Repeat("a", MaxLoginLen+1), password: "counter42", wantErr: "at most"},
		{name: "password too long", login: "shop", password: strings.Repeat("a1", 40), wantErr: "at most"},
		{name: "digits only", login: "shop", password: "12345678", wantErr: "letters and digits"},
		{name: "unicode letters", login: "магазин", password: "прилавок42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRegister(tt.login, tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
