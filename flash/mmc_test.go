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

package flash_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/devflash/flash-uboot/dirs"
	"github.com/devflash/flash-uboot/flash"
	"github.com/devflash/flash-uboot/testutil"
)

type mmcSuite struct {
	rootdir  string
	device   string
	forceRo  string
	blockdev *testutil.MockCmd
}

var _ = Suite(&mmcSuite{})

func (s *mmcSuite) SetUpTest(c *C) {
	s.rootdir = c.MkDir()
	dirs.SetRootDir(s.rootdir)

	c.Assert(os.MkdirAll(dirs.DevDir, 0755), IsNil)
	s.device = filepath.Join(dirs.DevDir, "mmcblk0boot0")
	c.Assert(os.WriteFile(s.device, bytes.Repeat([]byte{0xff}, 0x1000), 0644), IsNil)

	sysDir := filepath.Join(dirs.SysfsBlockDir, "mmcblk0boot0")
	c.Assert(os.MkdirAll(sysDir, 0755), IsNil)
	s.forceRo = filepath.Join(sysDir, "force_ro")
	c.Assert(os.WriteFile(s.forceRo, []byte("1\n"), 0644), IsNil)

	// 8 sectors of 512 bytes, matching the mocked device file
	s.blockdev = testutil.MockCommand(c, "blockdev", "echo 8")
}

func (s *mmcSuite) TearDownTest(c *C) {
	s.blockdev.Restore()
	dirs.SetRootDir("/")
}

func (s *mmcSuite) TestSections(c *C) {
	b, err := flash.NewMMCBackend(s.device, 0x400, 0x0)
	c.Assert(err, IsNil)
	c.Check(s.blockdev.Calls(), DeepEquals, [][]string{
		{"blockdev", "--getsz", s.device},
	})

	c.Check(b.HasSection(flash.SPL), Equals, true)
	c.Check(b.HasSection(flash.UBoot), Equals, true)
	c.Check(b.HasSection(flash.UBootSecond), Equals, false)

	// device capacity minus section offset
	c.Check(b.Size(flash.SPL), Equals, uint64(0x1000-0x400))
	c.Check(b.Size(flash.UBoot), Equals, uint64(0x1000))
}

func (s *mmcSuite) TestOffsetBeyondDevice(c *C) {
	_, err := flash.NewMMCBackend(s.device, 0x1000, 0x0)
	c.Assert(err, ErrorMatches, `cannot use offset 0x1000 for section spl: device .* is only 4096 bytes`)
}

func (s *mmcSuite) TestBlockdevFails(c *C) {
	blockdev := testutil.MockCommand(c, "blockdev", "echo no such device >&2; exit 1")
	defer blockdev.Restore()

	_, err := flash.NewMMCBackend(s.device, 0, 0)
	c.Assert(err, ErrorMatches, `cannot get size of .*: .*no such device.*`)
}

func (s *mmcSuite) TestEraseIsNoop(c *C) {
	b, err := flash.NewMMCBackend(s.device, 0x400, 0x0)
	c.Assert(err, IsNil)
	c.Assert(b.EraseSection(flash.SPL), IsNil)
	// the device is untouched
	raw, err := os.ReadFile(s.device)
	c.Assert(err, IsNil)
	c.Check(raw, DeepEquals, bytes.Repeat([]byte{0xff}, 0x1000))
}

func (s *mmcSuite) TestWriteTogglesForceRo(c *C) {
	b, err := flash.NewMMCBackend(s.device, 0x400, 0x0)
	c.Assert(err, IsNil)

	content := []byte("spl firmware image")
	c.Assert(b.Write(flash.SPL, content), IsNil)

	read, err := b.Read(flash.SPL, uint64(len(content)))
	c.Assert(err, IsNil)
	c.Check(read, DeepEquals, content)

	// protection is back in place
	raw, err := os.ReadFile(s.forceRo)
	c.Assert(err, IsNil)
	c.Check(string(raw), Equals, "1\n")
}

func (s *mmcSuite) TestWriteRestoresForceRoOnError(c *C) {
	b, err := flash.NewMMCBackend(s.device, 0x400, 0x0)
	c.Assert(err, IsNil)

	// replace the device node with a directory so the write step
	// itself fails, regardless of the uid running the test
	c.Assert(os.Remove(s.device), IsNil)
	c.Assert(os.Mkdir(s.device, 0755), IsNil)

	err = b.Write(flash.SPL, []byte("spl firmware image"))
	c.Assert(err, ErrorMatches, "cannot open .*: .*")

	// the protection was restored anyway
	raw, err := os.ReadFile(s.forceRo)
	c.Assert(err, IsNil)
	c.Check(string(raw), Equals, "1\n")
}

func (s *mmcSuite) TestWriteWithoutForceRoControl(c *C) {
	// take the whole sysfs directory away so toggling force_ro fails
	c.Assert(os.RemoveAll(filepath.Dir(s.forceRo)), IsNil)

	b, err := flash.NewMMCBackend(s.device, 0x400, 0x0)
	c.Assert(err, IsNil)

	err = b.Write(flash.SPL, []byte("spl firmware image"))
	c.Assert(err, ErrorMatches, "cannot unprotect .*: .*")
}

func (s *mmcSuite) TestWriteTooLarge(c *C) {
	b, err := flash.NewMMCBackend(s.device, 0x400, 0x0)
	c.Assert(err, IsNil)

	err = b.Write(flash.SPL, bytes.Repeat([]byte{0xaa}, 0x1000))
	c.Assert(err, ErrorMatches, `cannot write .*: 4096 bytes requested but the section window is only 3072 bytes`)
}
