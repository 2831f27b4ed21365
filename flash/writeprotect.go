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

package flash

import (
	"os"
	"path/filepath"

	"github.com/devflash/flash-uboot/dirs"
	"github.com/devflash/flash-uboot/logger"
)

// GPIOGuard toggles the board's flash write-protect line through the
// sysfs gpio interface. The line is active high: driving it low
// enables writing.
type GPIOGuard struct {
	line string
}

// NewGPIOGuard returns a guard for the given gpio number. Boards
// without a write-protect pin simply configure no guard.
func NewGPIOGuard(line string) *GPIOGuard {
	return &GPIOGuard{line: line}
}

func (g *GPIOGuard) valuePath() string {
	return filepath.Join(dirs.SysfsGpioDir, "gpio"+g.line, "value")
}

// EnableWrites drives the write-protect line to the write-enabled
// level and returns a restore function that protects the flash again.
// Callers must arrange for restore to run on every exit path.
func (g *GPIOGuard) EnableWrites() (restore func(), err error) {
	if err := os.WriteFile(g.valuePath(), []byte("0\n"), 0644); err != nil {
		return nil, err
	}
	return func() {
		if err := os.WriteFile(g.valuePath(), []byte("1\n"), 0644); err != nil {
			logger.Noticef("cannot restore write-protect on gpio %s: %v", g.line, err)
		}
	}, nil
}

// enableBlockWrites clears the force_ro control of the given block
// device and returns a restore function setting it again. The mmc
// driver exposes boot partitions read-only until this is cleared.
func enableBlockWrites(device string) (restore func(), err error) {
	path := filepath.Join(dirs.SysfsBlockDir, filepath.Base(device), "force_ro")
	if err := os.WriteFile(path, []byte("0\n"), 0644); err != nil {
		return nil, err
	}
	return func() {
		if err := os.WriteFile(path, []byte("1\n"), 0644); err != nil {
			logger.Noticef("cannot restore read-only protection on %s: %v", device, err)
		}
	}, nil
}
