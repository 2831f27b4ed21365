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

// Package flash models the bootloader regions of a device's flash
// storage as named sections and provides backends that can read,
// erase and write them on raw MTD partitions or on MMC block devices.
package flash

import (
	"fmt"
)

// Section identifies one bootloader region on the flash medium.
type Section int

const (
	// SPL is the secondary program loader, loaded by the boot ROM.
	SPL Section = iota
	// UBoot is the main bootloader image.
	UBoot
	// UBootSecond is an optional redundant copy of the main image.
	UBootSecond
)

// Ordered lists all sections in flashing order. The boot ROM locates
// the SPL before the main loader, so keeping this order minimizes the
// window in which a power loss leaves a mismatched pair behind.
var Ordered = []Section{SPL, UBoot, UBootSecond}

func (s Section) String() string {
	switch s {
	case SPL:
		return "spl"
	case UBoot:
		return "uboot"
	case UBootSecond:
		return "uboot-second"
	}
	return fmt.Sprintf("unknown section %d", int(s))
}

// mtdName is the partition label the section carries in /proc/mtd.
func (s Section) mtdName() string {
	switch s {
	case SPL:
		return "spl"
	case UBoot:
		return "u-boot"
	case UBootSecond:
		return "u-boot-second"
	}
	return ""
}

// ParseSection maps a user supplied section name to a Section.
func ParseSection(name string) (Section, error) {
	for _, s := range Ordered {
		if name == s.String() {
			return s, nil
		}
	}
	return 0, fmt.Errorf("cannot use %q: unknown section name", name)
}
