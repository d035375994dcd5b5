package rahmen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCipher(t *testing.T) {
	cases := []struct {
		name      string
		mode      CipherMode
		blockSize int
		ivSize    int
		tagSize   int
	}{
		{"AES-256-GCM", ModeAEAD, 16, 12, 16},
		{"aes-128-gcm", ModeAEAD, 16, 12, 16},
		{"AES-128-CBC", ModeCBC, 16, 16, 0},
		{"AES-256-OFB", ModeOFB, 16, 16, 0},
		{"AES-128-CFB", ModeCFB, 16, 16, 0},
		{"BF-CBC", ModeCBC, 8, 8, 0},
		{"CHACHA20-POLY1305", ModeAEAD, 0, 12, 16},
	}
	for i, c := range cases {
		spec, err := ResolveCipher(c.name)
		require.NoError(t, err, "[case %d] %s", i, c.name)
		assert.True(t, spec.Defined(), "[case %d] %s", i, c.name)
		assert.EqualValues(t, c.mode, spec.Mode, "[case %d] %s", i, c.name)
		assert.EqualValues(t, c.blockSize, spec.BlockSize, "[case %d] %s", i, c.name)
		assert.EqualValues(t, c.ivSize, spec.IVSize, "[case %d] %s", i, c.name)
		assert.EqualValues(t, c.tagSize, spec.TagSize, "[case %d] %s", i, c.name)
	}

	spec, err := ResolveCipher("none")
	require.NoError(t, err)
	assert.False(t, spec.Defined())

	spec, err = ResolveCipher("")
	require.NoError(t, err)
	assert.False(t, spec.Defined())

	_, err = ResolveCipher("ROT13")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cipher")
}

func TestResolveAuth(t *testing.T) {
	cases := []struct {
		name       string
		digestSize int
	}{
		{"MD5", 16},
		{"SHA1", 20},
		{"sha256", 32},
		{"SHA384", 48},
		{"SHA512", 64},
	}
	for i, c := range cases {
		spec, err := ResolveAuth(c.name)
		require.NoError(t, err, "[case %d] %s", i, c.name)
		assert.True(t, spec.Defined(), "[case %d] %s", i, c.name)
		assert.EqualValues(t, c.digestSize, spec.DigestSize, "[case %d] %s", i, c.name)
	}

	spec, err := ResolveAuth("none")
	require.NoError(t, err)
	assert.False(t, spec.Defined())

	_, err = ResolveAuth("CRC32")
	require.Error(t, err)
}

func TestNewKeyType(t *testing.T) {
	kt, err := NewKeyType("AES-256-GCM", "SHA1")
	require.NoError(t, err)
	assert.Equal(t, "AES-256-GCM/SHA1", kt.String())

	_, err = NewKeyType("ROT13", "SHA1")
	require.Error(t, err)
	_, err = NewKeyType("AES-256-GCM", "CRC32")
	require.Error(t, err)
}

func TestCryptoOverhead(t *testing.T) {
	gcm := mustKeyType(t, "AES-256-GCM", "SHA1")
	cbc := mustKeyType(t, "AES-128-CBC", "SHA1")
	ofb := mustKeyType(t, "AES-128-OFB", "SHA1")
	none := mustKeyType(t, "none", "SHA1")

	cases := []struct {
		kt          KeyType
		packetID    bool
		longForm    bool
		payloadSize int
		estimate    bool
		expected    int
	}{
		// AEAD pays the tag and nothing else beyond the packet id.
		{gcm, true, false, 0, true, 20},
		{gcm, true, true, 0, true, 24},
		{gcm, false, false, 1000, false, 16},
		// Block cipher estimates assume a full padding block.
		{cbc, true, true, 0, true, 60},
		{cbc, false, false, 0, true, 52},
		// Exact CBC padding rounds the payload up to the block size.
		{cbc, false, false, 100, false, 12 + 16 + 20},
		{cbc, false, false, 96, false, 16 + 16 + 20},
		// Feedback modes keep the payload length, only IV and digest remain.
		{ofb, false, false, 1000, false, 36},
		// Without a cipher the digest is still paid.
		{none, true, true, 0, true, 28},
		{none, false, false, 0, false, 20},
	}
	for i, c := range cases {
		got := CryptoOverhead(c.kt, c.packetID, c.longForm, c.payloadSize, c.estimate)
		assert.EqualValues(t, c.expected, got, "[case %d] %s", i, c.kt)
	}
}

func TestOverheadStrategyFor(t *testing.T) {
	s := overheadStrategyFor("BF-CBC")
	assert.EqualValues(t, 16, s.Fixed)
	assert.Equal(t, "none", s.Substitute)

	// Lookup follows the case insensitive cipher naming.
	s = overheadStrategyFor("bf-cbc")
	assert.EqualValues(t, 16, s.Fixed)

	s = overheadStrategyFor("AES-256-GCM")
	assert.EqualValues(t, 0, s.Fixed)
	assert.Equal(t, "AES-256-GCM", s.Substitute)
}
