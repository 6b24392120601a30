// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesAllFields(t *testing.T) {
	path := writeConfig(t, `
host: mainframe.example.com
port: 992
terminal_type: IBM-3278-2-E
lu_name: LU01
use_tn3270e: true
secure: true
verify_cert: true
primary_codepage: 37
alt_codepage: 1047
alt_rows: 27
alt_cols: 132
`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mainframe.example.com", f.Host)
	assert.Equal(t, 992, f.Port)
	assert.Equal(t, "IBM-3278-2-E", f.TerminalType)
	assert.True(t, f.UseTN3270E)
	assert.True(t, f.Secure)
	assert.Equal(t, 37, f.PrimaryCodepage)
	assert.Equal(t, 27, f.AltRows)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestAddressAppliesDefaultPort(t *testing.T) {
	f := &File{Host: "host.example.com"}
	assert.Equal(t, "host.example.com:23", f.Address())

	f.Secure = true
	assert.Equal(t, "host.example.com:992", f.Address())

	f.Port = 2023
	assert.Equal(t, "host.example.com:2023", f.Address())
}
