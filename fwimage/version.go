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

package fwimage

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// VersionUnavailable is returned when no version string can be found.
const VersionUnavailable = "UNAVAILABLE"

var versionMarker = []byte("U-Boot")

const (
	// u-boot version strings look like "U-Boot 2021.04 (Apr 19 2021)";
	// anything not longer than the marker plus a short date is noise,
	// anything past 1k is certainly not a version string.
	minVersionLen = 15
	maxVersionLen = 1024
)

// ExtractVersion scans a firmware image for the NUL terminated
// version string embedded by the u-boot build. It degrades to
// VersionUnavailable on any malformed input and never fails.
func ExtractVersion(buf []byte) string {
	for start := 0; start < len(buf); {
		i := bytes.Index(buf[start:], versionMarker)
		if i < 0 {
			break
		}
		i += start

		nul := bytes.IndexByte(buf[i:], 0)
		if nul < 0 {
			// no terminator anywhere in the rest of the image
			break
		}
		if nul > minVersionLen && nul <= maxVersionLen {
			span := buf[i : i+nul]
			if utf8.Valid(span) {
				return strings.TrimRight(string(span), "\n")
			}
		}
		// false match, resume just past it
		start = i + len(versionMarker)
	}
	return VersionUnavailable
}
