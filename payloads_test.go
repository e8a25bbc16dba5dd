package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-lms-auth"
)

func TestRegisterPayloadValidate(t *testing.T) {
	valid := auth.RegisterPayload{Name: "Ada", Email: "a@x.com", Password: "Secret123"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*auth.RegisterPayload)
	}{
		{"missing name", func(p *auth.RegisterPayload) { p.Name = "" }},
		{"bad email", func(p *auth.RegisterPayload) { p.Email = "not-an-email" }},
		{"short password", func(p *auth.RegisterPayload) { p.Password = "short" }},
		{"bad phone", func(p *auth.RegisterPayload) { p.Phone = "12" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestLoginPayloadValidate(t *testing.T) {
	assert.NoError(t, auth.LoginPayload{Email: "a@x.com", Password: "x"}.Validate())
	assert.Error(t, auth.LoginPayload{Email: "a@x.com"}.Validate())
	assert.Error(t, auth.LoginPayload{Password: "x"}.Validate())
}

func TestCapabilityPayloadValidate(t *testing.T) {
	assert.NoError(t, auth.CapabilityPayload{Capability: "create:courses"}.Validate())
	assert.Error(t, auth.CapabilityPayload{}.Validate())
}

func TestNormalizePhone(t *testing.T) {
	phone, err := auth.NormalizePhone(" +1 650-253-0000 ")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", phone)

	phone, err = auth.NormalizePhone("")
	require.NoError(t, err)
	assert.Empty(t, phone)

	_, err = auth.NormalizePhone("123")
	assert.Error(t, err)
}
