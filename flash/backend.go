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
	"os"

	"golang.org/x/sys/unix"
)

// Backend provides section-oriented access to one flash medium. A
// backend is selected once at startup and owns its device nodes for
// the lifetime of the invocation.
type Backend interface {
	// HasSection returns whether the backend discovered or was
	// configured with the given section.
	HasSection(sec Section) bool
	// Size returns the usable byte size of the section.
	Size(sec Section) uint64
	// Read reads length bytes starting at the section's offset.
	Read(sec Section, length uint64) ([]byte, error)
	// EraseSection prepares the section for writing. Raw flash
	// requires a whole-partition erase, block devices do not.
	EraseSection(sec Section) error
	// Write writes data at the section's offset.
	Write(sec Section, data []byte) error
}

// MediumError reports an I/O failure talking to the underlying device.
type MediumError struct {
	Device string
	Op     string
	Err    error
}

func (e *MediumError) Error() string {
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *MediumError) Unwrap() error {
	return e.Err
}

// readDevice reads length bytes at offset from the given device node.
func readDevice(device string, offset, length uint64) ([]byte, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, &MediumError{Device: device, Op: "open", Err: err}
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return nil, &MediumError{Device: device, Op: "read", Err: err}
	}
	return buf, nil
}

// writeDevice writes data at offset to the given device node and
// syncs it out before closing. A short write is not rolled back.
func writeDevice(device string, offset uint64, data []byte) error {
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return &MediumError{Device: device, Op: "open", Err: err}
	}
	defer f.Close()

	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		return &MediumError{Device: device, Op: "write", Err: err}
	}
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		return &MediumError{Device: device, Op: "sync", Err: err}
	}
	return nil
}

// checkWindow verifies that a read or write of length bytes fits into
// the section's usable window.
func checkWindow(device string, size, length uint64, op string) error {
	if length > size {
		return &MediumError{Device: device, Op: op, Err: fmt.Errorf("%d bytes requested but the section window is only %d bytes", length, size)}
	}
	return nil
}
