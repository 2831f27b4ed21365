// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2021 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package fwimage loads candidate firmware images and provides the
// content digest and version extraction helpers used to compare them
// against what is currently in flash.
package fwimage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/devflash/flash-uboot/flash"
)

// Candidate is a local firmware file staged for one flash section.
// It is loaded once per invocation and read-only afterwards.
type Candidate struct {
	Section flash.Section
	Path    string
	Content []byte
	Digest  string
}

// Open loads the firmware file at path for the given section.
func Open(sec flash.Section, path string) (*Candidate, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Candidate{
		Section: sec,
		Path:    path,
		Content: content,
		Digest:  Digest(content),
	}, nil
}

// ForSection returns a copy of the candidate retargeted at another
// section, for boards that keep a redundant copy of the same image.
func (c *Candidate) ForSection(sec flash.Section) *Candidate {
	copied := *c
	copied.Section = sec
	return &copied
}

// Digest returns the hex encoded SHA-256 fingerprint of data.
func Digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
