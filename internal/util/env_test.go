package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("CD_TEST_STR", "  value ")
	assert.Equal(t, "value", GetEnv("CD_TEST_STR", "def"))

	t.Setenv("CD_TEST_STR", "   ")
	assert.Equal(t, "def", GetEnv("CD_TEST_STR", "def"))
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"true", false, true},
		{"YES", false, true},
		{" on ", false, true},
		{"1", false, true},
		{"off", true, false},
		{"No", true, false},
		{"0", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("CD_TEST_BOOL", tt.val)
			assert.Equal(t, tt.want, ParseBoolEnv("CD_TEST_BOOL", tt.def))
		})
	}
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("CD_TEST_DUR", "")
	assert.Equal(t, time.Minute, GetDurationEnv("CD_TEST_DUR", time.Minute))

	t.Setenv("CD_TEST_DUR", "2h")
	assert.Equal(t, 2*time.Hour, GetDurationEnv("CD_TEST_DUR", time.Minute))

	t.Setenv("CD_TEST_DUR", "90")
	assert.Equal(t, 90*time.Second, GetDurationEnv("CD_TEST_DUR", time.Minute))

	t.Setenv("CD_TEST_DUR", "soon")
	assert.Equal(t, time.Minute, GetDurationEnv("CD_TEST_DUR", time.Minute))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("CD_TEST_INT", "8")
	assert.Equal(t, 8, GetIntEnv("CD_TEST_INT", 4))

	t.Setenv("CD_TEST_INT", "eight")
	assert.Equal(t, 4, GetIntEnv("CD_TEST_INT", 4))
}
