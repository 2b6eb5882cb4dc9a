package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmail(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "valid simple email", address: "test@example.com"},
		{name: "valid email with plus", address: "user+tag@example.com"},
		{name: "normalizes case and space", address: "  John@Example.COM "},
		{name: "empty email", address: "", wantErr: true},
		{name: "missing @ symbol", address: "userexample.com", wantErr: true},
		{name: "missing domain", address: "user@", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := NewEmail(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, email.IsEmpty())
		})
	}
}

func TestEmail_Masked(t *testing.T) {
	email := MustNewEmail("john@example.com")

	assert.Equal(t, "john", email.LocalPart())
	assert.Equal(t, "example.com", email.Domain())
	assert.Equal(t, "jo***@example.com", email.Masked())
}

func TestMaskEmailAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john@example.com", "jo***@example.com"},
		{"a@example.com", "a***@example.com"},
		{"jo***@example.com", "jo***@example.com"},
		{"not-an-email", "not-an-email"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskEmailAddress(tt.in))
		})
	}
}

func TestIsEmailAddress(t *testing.T) {
	assert.True(t, IsEmailAddress("john@example.com"))
	assert.False(t, IsEmailAddress("jo***@example.com"))
	assert.False(t, IsEmailAddress("Acme Corp"))
}

func TestEmail_JSON(t *testing.T) {
	email := MustNewEmail("ops@supplier.io")

	data, err := json.Marshal(email)
	require.NoError(t, err)
	assert.Equal(t, `"ops@supplier.io"`, string(data))

	var decoded Email
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, email, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"broken"`), &decoded))
}
