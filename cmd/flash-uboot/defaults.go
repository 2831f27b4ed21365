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

package main

import (
	"fmt"

	"github.com/mvo5/goconfigparser"

	"github.com/devflash/flash-uboot/osutil"
)

// boardDefaults carries the per-board settings from the defaults
// file, so that image builders can preconfigure the write-protect
// gpio, the device node and the section offsets:
//
//	flash=mmc
//	device=/dev/mmcblk0boot0
//	gpio=4
//	spl-offset=0x400
//	uboot-offset=0x60000
//
// Explicit command line flags always win over the file.
type boardDefaults struct {
	flash       string
	device      string
	gpio        string
	splOffset   string
	ubootOffset string
}

func readBoardDefaults(path string) (*boardDefaults, error) {
	defaults := &boardDefaults{}
	if !osutil.FileExists(path) {
		return defaults, nil
	}

	cfg := goconfigparser.New()
	cfg.AllowNoSectionHeader = true
	if err := cfg.ReadFile(path); err != nil {
		return nil, fmt.Errorf("cannot read board defaults %s: %v", path, err)
	}
	for _, entry := range []struct {
		key   string
		value *string
	}{
		{"flash", &defaults.flash},
		{"device", &defaults.device},
		{"gpio", &defaults.gpio},
		{"spl-offset", &defaults.splOffset},
		{"uboot-offset", &defaults.ubootOffset},
	} {
		if v, err := cfg.Get("", entry.key); err == nil {
			*entry.value = v
		}
	}
	return defaults, nil
}

// apply fills in options the user did not set on the command line.
func (d *boardDefaults) apply(opts *options) {
	if opts.Flash == "" && !opts.Mtd && opts.Mmc == "" {
		opts.Flash = d.flash
	}
	if opts.Positional.Device == "" {
		opts.Positional.Device = d.device
	}
	if opts.Gpio == "" {
		opts.Gpio = d.gpio
	}
	if opts.SplOffset == "" {
		opts.SplOffset = d.splOffset
	}
	if opts.UbootOffset == "" {
		opts.UbootOffset = d.ubootOffset
	}
}
