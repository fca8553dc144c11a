package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_readEnvBool(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		initial bool
		want    bool
	}{
		{"true", "true", false, true},
		{"yes", "YES", false, true},
		{"one", "1", false, true},
		{"off", "off", true, false},
		{"zero", "0", true, false},
		{"garbage keeps value", "maybe", true, true},
		{"empty keeps value", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FACEAUTH_TEST_BOOL", tt.env)
			got := tt.initial
			readEnvBool("FACEAUTH_TEST_BOOL", &got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_readEnvNumbers(t *testing.T) {
	t.Setenv("FACEAUTH_TEST_INT", "42")
	t.Setenv("FACEAUTH_TEST_BAD_INT", "4x2")
	t.Setenv("FACEAUTH_TEST_FLOAT", "0.25")

	i := 7
	readEnvInt("FACEAUTH_TEST_INT", &i)
	assert.Equal(t, 42, i)

	bad := 7
	readEnvInt("FACEAUTH_TEST_BAD_INT", &bad)
	assert.Equal(t, 7, bad)

	f := 0.11
	readEnvFloat("FACEAUTH_TEST_FLOAT", &f)
	assert.Equal(t, 0.25, f)

	s := "default"
	readEnvString("FACEAUTH_TEST_MISSING", &s)
	assert.Equal(t, "default", s)
}
