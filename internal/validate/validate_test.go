// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorURL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid https", "https://tools.example.com", false},
		{"valid http with port", "http://127.0.0.1:8080", false},
		{"empty", "", true},
		{"no host", "https://", true},
		{"bad scheme", "ftp://example.com", true},
		{"garbage", "://bad", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("base", tt.value, []string{"http", "https"})
			assert.Equal(t, tt.wantErr, !v.IsValid(), v.Errors())
		})
	}
}

func TestOptionalURLSkipsEmpty(t *testing.T) {
	v := New()
	v.OptionalURL("hook", "", []string{"https"})
	v.OptionalURL("hook", "  ", []string{"https"})
	assert.True(t, v.IsValid())

	v.OptionalURL("hook", "http://example.com", []string{"https"})
	assert.False(t, v.IsValid())
}

func TestRanges(t *testing.T) {
	v := New()
	v.Range("attempts", 0, 1, 10)
	v.Range("attempts", 5, 1, 10)
	v.FloatRange("rate", 1.5, 0, 1)
	v.DurationRange("poll", 100*time.Millisecond, time.Second, time.Minute)
	v.DurationRange("poll", 2*time.Second, time.Second, time.Minute)
	v.Positive("n", 0)
	v.NonNegative("m", -1)
	v.NonNegative("m", 0)

	var ve ValidationError
	require.ErrorAs(t, v.Err(), &ve)
	assert.Equal(t, []string{"attempts", "rate", "poll", "n", "m"}, ve.Fields())
}

func TestOneOfAndNotEmpty(t *testing.T) {
	v := New()
	v.OneOf("backend", "file", []string{"file", "sqlite"})
	v.NotEmpty("name", "x")
	require.NoError(t, v.Err())

	v.OneOf("backend", "etcd", []string{"file", "sqlite"})
	v.NotEmpty("name", "   ")
	err := v.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `got "etcd"`)
	assert.Contains(t, err.Error(), "name: value cannot be empty")
}

func TestSectionPrefixesFields(t *testing.T) {
	v := New()
	s := v.Section("provider")
	s.URL("baseURL", "", nil)
	s.Positive("burst", 0)
	s.AddError("apiKey", "required", "")

	var ve ValidationError
	require.ErrorAs(t, v.Err(), &ve)
	assert.Equal(t, []string{"provider.baseURL", "provider.burst", "provider.apiKey"}, ve.Fields())
}

func TestCustom(t *testing.T) {
	v := New()
	v.Custom("x", 3, func(val any) error {
		if val.(int)%2 == 1 {
			return fmt.Errorf("must be even")
		}
		return nil
	})
	require.Len(t, v.Errors(), 1)
	assert.Equal(t, "validation failed for x: must be even", v.Errors()[0].Error())
}

func TestErrIsSnapshot(t *testing.T) {
	v := New()
	v.AddError("a", "bad", nil)
	err := v.Err()
	v.AddError("b", "bad", nil)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors(), 1)
	assert.Nil(t, New().Err())
}

func TestParseLogLevel(t *testing.T) {
	for _, in := range []string{"debug", " INFO ", "Warn", "error", "trace"} {
		_, err := ParseLogLevel(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}
