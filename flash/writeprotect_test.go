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
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/devflash/flash-uboot/dirs"
	"github.com/devflash/flash-uboot/flash"
	"github.com/devflash/flash-uboot/logger"
)

type writeProtectSuite struct {
	rootdir   string
	valuePath string
}

var _ = Suite(&writeProtectSuite{})

func (s *writeProtectSuite) SetUpTest(c *C) {
	s.rootdir = c.MkDir()
	dirs.SetRootDir(s.rootdir)

	gpioDir := filepath.Join(dirs.SysfsGpioDir, "gpio4")
	c.Assert(os.MkdirAll(gpioDir, 0755), IsNil)
	s.valuePath = filepath.Join(gpioDir, "value")
	c.Assert(os.WriteFile(s.valuePath, []byte("1\n"), 0644), IsNil)
}

func (s *writeProtectSuite) TearDownTest(c *C) {
	dirs.SetRootDir("/")
}

func (s *writeProtectSuite) value(c *C) string {
	raw, err := os.ReadFile(s.valuePath)
	c.Assert(err, IsNil)
	return string(raw)
}

func (s *writeProtectSuite) TestEnableWritesAndRestore(c *C) {
	guard := flash.NewGPIOGuard("4")

	restore, err := guard.EnableWrites()
	c.Assert(err, IsNil)
	c.Check(s.value(c), Equals, "0\n")

	restore()
	c.Check(s.value(c), Equals, "1\n")
}

func (s *writeProtectSuite) TestEnableWritesMissingLine(c *C) {
	guard := flash.NewGPIOGuard("7")

	_, err := guard.EnableWrites()
	c.Assert(err, NotNil)
}

func (s *writeProtectSuite) TestRestoreFailureIsLogged(c *C) {
	buf, restoreLogger := logger.MockLogger()
	defer restoreLogger()

	guard := flash.NewGPIOGuard("4")
	restore, err := guard.EnableWrites()
	c.Assert(err, IsNil)

	// make the restore write fail
	c.Assert(os.RemoveAll(filepath.Dir(s.valuePath)), IsNil)
	restore()

	c.Check(buf.String(), Matches, `(?s).*cannot restore write-protect on gpio 4: .*`)
}
