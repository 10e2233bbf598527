package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("PW_TEST_SET", "value")
	t.Setenv("PW_TEST_EMPTY", "")

	assert.Equal(t, "value", GetEnvOrDefault("PW_TEST_SET", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("PW_TEST_EMPTY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("PW_TEST_UNSET", "fallback"))
}

func TestParseInteger(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{name: "valid", value: "42", defaultValue: 10, want: 42},
		{name: "zero is a value", value: "0", defaultValue: 10, want: 0},
		{name: "negative", value: "-3", defaultValue: 10, want: -3},
		{name: "empty falls back", value: "", defaultValue: 10, want: 10},
		{name: "garbage falls back", value: "abc", defaultValue: 10, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInteger(tt.value, tt.defaultValue))
		})
	}
}

func TestParseBoolean(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{name: "true", value: "true", defaultValue: false, want: true},
		{name: "mixed case", value: "True", defaultValue: false, want: true},
		{name: "false", value: "false", defaultValue: true, want: false},
		{name: "numeric", value: "1", defaultValue: false, want: true},
		{name: "empty falls back", value: "", defaultValue: true, want: true},
		{name: "garbage falls back", value: "yes", defaultValue: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBoolean(tt.value, tt.defaultValue))
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"Eastern", "Central"}, SplitAndTrim(" Eastern , Central "))
	assert.Equal(t, []string{"one"}, SplitAndTrim("one"))
	assert.Empty(t, SplitAndTrim(""))
	assert.Empty(t, SplitAndTrim(" , , "))
}
