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

// Package dirs holds the absolute paths of the kernel interfaces the
// tool talks to. Tests relocate all of them at once with SetRootDir.
package dirs

import (
	"path/filepath"
)

var (
	GlobalRootDir string

	// ProcMtd is the kernel's raw-flash partition table.
	ProcMtd string
	// DevDir is where partition and block device nodes live.
	DevDir string
	// SysfsGpioDir is the legacy sysfs gpio interface.
	SysfsGpioDir string
	// SysfsBlockDir holds per-block-device controls, notably force_ro.
	SysfsBlockDir string
	// DefaultsFile carries per-board defaults for the CLI.
	DefaultsFile string
)

func init() {
	SetRootDir("/")
}

// SetRootDir recomputes all exported paths relative to rootdir.
func SetRootDir(rootdir string) {
	if rootdir == "" {
		rootdir = "/"
	}
	GlobalRootDir = rootdir

	ProcMtd = filepath.Join(rootdir, "/proc/mtd")
	DevDir = filepath.Join(rootdir, "/dev")
	SysfsGpioDir = filepath.Join(rootdir, "/sys/class/gpio")
	SysfsBlockDir = filepath.Join(rootdir, "/sys/block")
	DefaultsFile = filepath.Join(rootdir, "/etc/flash-uboot.conf")
}
