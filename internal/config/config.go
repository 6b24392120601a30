// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

// Package config loads optional on-disk defaults for a tn3270e.Config, so a
// caller can ship a YAML file alongside a script instead of hard-coding
// connection parameters. This is purely an ambient convenience layer; the
// exported tn3270e.Config struct remains the source of truth callers build
// by hand when they don't want a file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape this package loads, mirroring the fields of
// tn3270e.Config the ambient layer supports overriding.
type File struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	TerminalType    string `yaml:"terminal_type"`
	LUName          string `yaml:"lu_name"`
	UseTN3270E      bool   `yaml:"use_tn3270e"`
	Secure          bool   `yaml:"secure"`
	VerifyCert      bool   `yaml:"verify_cert"`
	PrimaryCodepage int    `yaml:"primary_codepage"`
	AltCodepage     int    `yaml:"alt_codepage"`
	AltRows         int    `yaml:"alt_rows"`
	AltCols         int    `yaml:"alt_cols"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &f, nil
}

// Address returns the host:port pair Session.Connect expects, applying the
// conventional default port (23, or 992 when Secure is set) if Port is
// unset.
func (f *File) Address() string {
	port := f.Port
	if port == 0 {
		if f.Secure {
			port = 992
		} else {
			port = 23
		}
	}
	return fmt.Sprintf("%s:%d", f.Host, port)
}
