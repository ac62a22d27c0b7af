package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tessworth/routinely/pkg/routine"
	"github.com/tessworth/routinely/pkg/security"
)

func TestRedactor_Redact(t *testing.T) {
	tests := []struct {
		name    string
		params  []routine.Parameter
		values  map[string]any
		input   string
		want    string
		secrets []string
	}{
		{
			name: "exact match",
			params: []routine.Parameter{
				{Name: "password", Secret: true},
			},
			values: map[string]any{
				"password": "supersecret",
			},
			input:   "The password is supersecret",
			want:    "The password is ********",
			secrets: []string{"supersecret"},
		},
		{
			name: "multiple occurrences",
			params: []routine.Parameter{
				{Name: "api_key", Secret: true},
			},
			values: map[string]any{
				"api_key": "abcdef",
			},
			input:   "API key: abcdef is being used. Backup key: abcdef should be stored.",
			want:    "API key: ******** is being used. Backup key: ******** should be stored.",
			secrets: []string{"abcdef"},
		},
		{
			name: "multiple secrets",
			params: []routine.Parameter{
				{Name: "password", Secret: true},
				{Name: "api_key", Secret: true},
			},
			values: map[string]any{
				"password": "pass123",
				"api_key":  "key456",
			},
			input:   "Password: pass123, API Key: key456",
			want:    "Password: ********, API Key: ********",
			secrets: []string{"pass123", "key456"},
		},
		{
			name: "empty secret is skipped",
			params: []routine.Parameter{
				{Name: "empty_secret", Secret: true},
				{Name: "valid_secret", Secret: true},
			},
			values: map[string]any{
				"empty_secret": "",
				"valid_secret": "valid",
			},
			input:   "Empty: , Valid: valid",
			want:    "Empty: , Valid: ********",
			secrets: []string{"valid"},
		},
		{
			name:    "nil redactor returns original string",
			params:  nil,
			values:  nil,
			input:   "Original string",
			want:    "Original string",
			secrets: nil,
		},
		{
			name: "secret not found in input",
			params: []routine.Parameter{
				{Name: "unused", Secret: true},
			},
			values: map[string]any{
				"unused": "notused",
			},
			input:   "This string doesn't contain the secret",
			want:    "This string doesn't contain the secret",
			secrets: []string{"notused"},
		},
		{
			name: "overlapping secrets",
			params: []routine.Parameter{
				{Name: "short", Secret: true},
				{Name: "long", Secret: true},
			},
			values: map[string]any{
				"short": "secret",
				"long":  "supersecret",
			},
			input:   "This contains supersecret and secret values",
			want:    "This contains ******** and ******** values",
			secrets: []string{"secret", "supersecret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &security.Redactor{
				Secrets: tt.secrets,
			}
			got := r.Redact(tt.input)
			assert.Equal(t, tt.want, got)

			factoryRedactor := security.NewRedactor(tt.params, tt.values)
			if tt.secrets == nil {
				assert.Nil(t, factoryRedactor.Secrets)
			} else {
				assert.ElementsMatch(t, tt.secrets, factoryRedactor.Secrets)
			}
		})
	}
}

func TestNewRedactor(t *testing.T) {
	tests := []struct {
		name        string
		params      []routine.Parameter
		values      map[string]any
		wantSecrets []string
	}{
		{
			name: "collect secret values",
			params: []routine.Parameter{
				{Name: "password", Secret: true},
				{Name: "username", Secret: false},
				{Name: "api_key", Secret: true},
			},
			values: map[string]any{
				"password": "pass123",
				"username": "user1",
				"api_key":  "key456",
			},
			wantSecrets: []string{"pass123", "key456"},
		},
		{
			name: "non-string secret values are stringified",
			params: []routine.Parameter{
				{Name: "account_id", Type: routine.TypeInteger, Secret: true},
			},
			values: map[string]any{
				"account_id": 991234,
			},
			wantSecrets: []string{"991234"},
		},
		{
			name: "missing values in context are excluded",
			params: []routine.Parameter{
				{Name: "password", Secret: true},
				{Name: "missing_secret", Secret: true},
			},
			values: map[string]any{
				"password": "pass123",
			},
			wantSecrets: []string{"pass123"},
		},
		{
			name:        "empty params result in empty secrets",
			params:      []routine.Parameter{},
			values:      map[string]any{},
			wantSecrets: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := security.NewRedactor(tt.params, tt.values)
			assert.ElementsMatch(t, tt.wantSecrets, r.Secrets)
		})
	}
}
