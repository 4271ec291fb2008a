package license_test

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

func TestKeyGenerator(t *testing.T) {
	gen := license.NewKeyGenerator(license.DefaultKeyLength)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		key, err := gen.Generate()
		require.NoError(t, err)
		assert.Len(t, key, license.DefaultKeyLength)
		for _, c := range key {
			assert.True(t, strings.ContainsRune(license.KeyAlphabet, c), "unexpected character %q", c)
		}
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestKeyGeneratorLength(t *testing.T) {
	assert.Equal(t, 24, license.NewKeyGenerator(24).Length())
	assert.Equal(t, license.DefaultKeyLength, license.NewKeyGenerator(3).Length())
}

func TestKeyGeneratorEntropyFailure(t *testing.T) {
	gen := license.NewKeyGenerator(16).WithRandSource(iotest.ErrReader(errors.New("no entropy")))
	_, err := gen.Generate()
	assert.Error(t, err)
}

func TestValidateCustomKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "longkey", want: "LONGKEY"},
		{in: "  abc123 ", want: "ABC123"},
		{in: "short", wantErr: license.ErrKeyTooShort},
		{in: "", wantErr: license.ErrKeyTooShort},
		{in: "has space", wantErr: license.ErrInvalidInput},
		{in: "ÜBERKEY", wantErr: license.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := license.ValidateCustomKey(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDays(t *testing.T) {
	n, err := license.ParseDays(" 30 ")
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	n, err = license.ParseDays("-3")
	require.NoError(t, err)
	assert.Equal(t, -3, n)

	for _, bad := range []string{"", "thirty", "1.5"} {
		_, err := license.ParseDays(bad)
		assert.ErrorIs(t, err, license.ErrInvalidInput, bad)
	}
}

func TestSnapshotEncoding(t *testing.T) {
	data, err := license.EncodeSnapshot(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	records, err := license.DecodeSnapshot(nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = license.DecodeSnapshot([]byte("[1,2]"))
	assert.Error(t, err)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "K7Q2****", license.MaskKey("K7Q2M9X4ZL3P8R1T"))
	assert.Equal(t, "****", license.MaskKey("AB"))
}
