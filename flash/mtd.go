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
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devflash/flash-uboot/dirs"
	"github.com/devflash/flash-uboot/logger"
	"github.com/devflash/flash-uboot/osutil"
)

// Partition describes one entry of the kernel's raw-flash partition
// table, for listing purposes.
type Partition struct {
	Device string
	Size   uint64
	Name   string
}

type mtdSection struct {
	device string
	// offset of the section image within the partition; the i.MX
	// boot ROM expects the SPL a bit into the partition.
	offset uint64
	size   uint64
}

// MTDBackend maps the bootloader sections to raw MTD partitions, one
// device node per section, discovered from /proc/mtd.
type MTDBackend struct {
	partitions []Partition
	sections   map[Section]mtdSection
}

// NewMTDBackend discovers the bootloader partitions from the kernel
// partition table. Only partitions labeled spl, u-boot and
// u-boot-second become sections; everything else is left alone.
// offsets supplies the image offset within each partition; the second
// u-boot copy uses the same offset as the first.
func NewMTDBackend(offsets map[Section]uint64) (*MTDBackend, error) {
	partitions, err := parseMtdTable(dirs.ProcMtd)
	if err != nil {
		return nil, err
	}

	b := &MTDBackend{
		partitions: partitions,
		sections:   make(map[Section]mtdSection),
	}
	for _, sec := range Ordered {
		for _, p := range partitions {
			if p.Name != sec.mtdName() {
				continue
			}
			offset := offsets[sec]
			if sec == UBootSecond {
				offset = offsets[UBoot]
			}
			if offset >= p.Size {
				return nil, fmt.Errorf("cannot use offset %#x for section %s: partition %s is only %d bytes", offset, sec, p.Device, p.Size)
			}
			b.sections[sec] = mtdSection{
				device: p.Device,
				offset: offset,
				size:   p.Size - offset,
			}
		}
	}
	return b, nil
}

// parseMtdTable reads the kernel partition table. Each non-header
// line has the form:
//
//	mtd0: 00100000 00010000 "spl"
//
// with sizes in hex. Lines not matching this shape are skipped.
func parseMtdTable(path string) ([]Partition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read mtd partition table: %v", err)
	}

	var partitions []Partition
	lines := strings.Split(string(content), "\n")
	if len(lines) > 0 {
		// first line is the "dev: size erasesize name" header
		lines = lines[1:]
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 4 {
			continue
		}
		id := strings.TrimSuffix(fields[0], ":")
		if id == fields[0] {
			continue
		}
		size, err := strconv.ParseUint(fields[1], 16, 64)
		if err != nil {
			continue
		}
		if _, err := strconv.ParseUint(fields[2], 16, 64); err != nil {
			continue
		}
		name := strings.Trim(fields[3], `"`)
		partitions = append(partitions, Partition{
			Device: filepath.Join(dirs.DevDir, id),
			Size:   size,
			Name:   name,
		})
	}
	return partitions, nil
}

// Partitions returns all entries of the partition table, including
// the ones that did not become sections.
func (b *MTDBackend) Partitions() []Partition {
	return b.partitions
}

func (b *MTDBackend) HasSection(sec Section) bool {
	_, ok := b.sections[sec]
	return ok
}

func (b *MTDBackend) Size(sec Section) uint64 {
	return b.sections[sec].size
}

func (b *MTDBackend) Read(sec Section, length uint64) ([]byte, error) {
	s := b.sections[sec]
	if err := checkWindow(s.device, s.size, length, "read"); err != nil {
		return nil, err
	}
	return readDevice(s.device, s.offset, length)
}

// EraseSection erases the whole partition backing the section. Raw
// flash must be erased before it can be programmed again.
func (b *MTDBackend) EraseSection(sec Section) error {
	s := b.sections[sec]
	logger.Debugf("erasing %s (%s)", sec, s.device)
	output, err := exec.Command("flash_erase", s.device, "0", "0").CombinedOutput()
	if err != nil {
		return &MediumError{Device: s.device, Op: "erase", Err: osutil.OutputErr(output, err)}
	}
	return nil
}

func (b *MTDBackend) Write(sec Section, data []byte) error {
	s := b.sections[sec]
	if err := checkWindow(s.device, s.size, uint64(len(data)), "write"); err != nil {
		return err
	}
	return writeDevice(s.device, s.offset, data)
}
