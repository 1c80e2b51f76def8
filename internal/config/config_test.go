package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ModeFixed, cfg.Mode)
	assert.Equal(t, 5, cfg.Window)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, byte(0x00), cfg.Delimiter)
}

func TestApplyFileOverridesOnlySetFields(t *testing.T) {
	cfg := Defaults()
	applyFile(&cfg, fileConfig{Window: 10, DelimiterHex: "0a"})
	assert.Equal(t, 10, cfg.Window)
	assert.Equal(t, byte(0x0a), cfg.Delimiter)
	assert.Equal(t, ModeFixed, cfg.Mode) // untouched field keeps its default
}

func TestParseDelimiterHex(t *testing.T) {
	b, err := parseDelimiterHex("ff")
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), b)

	_, err = parseDelimiterHex("zz")
	assert.Error(t, err)

	_, err = parseDelimiterHex("0011")
	assert.Error(t, err, "must be exactly one byte")
}

func TestApplyFlagsRejectsInvalidMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "BOGUS"
	err := applyFlags(&cfg)
	assert.Error(t, err)
}

func TestApplyFlagsRejectsNonPositiveBlockSize(t *testing.T) {
	cfg := Defaults()
	cfg.BlockSize = 0
	err := applyFlags(&cfg)
	assert.Error(t, err)
}

func TestApplyFlagsRejectsOutOfRangePort(t *testing.T) {
	cfg := Defaults()
	cfg.Port = 70000
	err := applyFlags(&cfg)
	assert.Error(t, err)
}
