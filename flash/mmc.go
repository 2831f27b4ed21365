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
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/devflash/flash-uboot/osutil"
)

// MMCBackend maps the spl and uboot sections to offset windows inside
// a single MMC boot partition. Block devices are rewritten in place,
// so there is no erase phase, but the storage stack refuses writes to
// a protected boot partition unless force_ro is lifted first.
type MMCBackend struct {
	device  string
	size    uint64
	offsets map[Section]uint64
}

// NewMMCBackend configures the fixed {spl, uboot} section set at the
// given offsets against one block device.
func NewMMCBackend(device string, splOffset, ubootOffset uint64) (*MMCBackend, error) {
	size, err := blockDeviceSize(device)
	if err != nil {
		return nil, err
	}
	offsets := map[Section]uint64{
		SPL:   splOffset,
		UBoot: ubootOffset,
	}
	for sec, offset := range offsets {
		if offset >= size {
			return nil, fmt.Errorf("cannot use offset %#x for section %s: device %s is only %d bytes", offset, sec, device, size)
		}
	}
	return &MMCBackend{
		device:  device,
		size:    size,
		offsets: offsets,
	}, nil
}

// Device returns the block device node the backend writes to.
func (b *MMCBackend) Device() string {
	return b.device
}

func (b *MMCBackend) HasSection(sec Section) bool {
	_, ok := b.offsets[sec]
	return ok
}

// Size returns the device capacity left past the section's offset.
func (b *MMCBackend) Size(sec Section) uint64 {
	return b.size - b.offsets[sec]
}

func (b *MMCBackend) Read(sec Section, length uint64) ([]byte, error) {
	if err := checkWindow(b.device, b.Size(sec), length, "read"); err != nil {
		return nil, err
	}
	return readDevice(b.device, b.offsets[sec], length)
}

// EraseSection is a no-op, block devices support in-place overwrite.
func (b *MMCBackend) EraseSection(sec Section) error {
	return nil
}

// Write lifts the device's force-read-only protection, writes the
// data at the section's offset and restores the protection on every
// path out, independent of any gpio write-protect guard.
func (b *MMCBackend) Write(sec Section, data []byte) error {
	if err := checkWindow(b.device, b.Size(sec), uint64(len(data)), "write"); err != nil {
		return err
	}
	restore, err := enableBlockWrites(b.device)
	if err != nil {
		return &MediumError{Device: b.device, Op: "unprotect", Err: err}
	}
	defer restore()

	return writeDevice(b.device, b.offsets[sec], data)
}

// blockDeviceSize queries the device capacity. Use the blockdev
// command instead of calling the ioctl directly since on 32bit
// systems it's a pain to get a 64bit value from a ioctl.
func blockDeviceSize(device string) (uint64, error) {
	raw, err := exec.Command("blockdev", "--getsz", device).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("cannot get size of %s: %v", device, osutil.OutputErr(raw, err))
	}
	blocks, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse blockdev output for %s: %v", device, err)
	}
	return blocks * 512, nil
}
