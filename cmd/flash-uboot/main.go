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
	"io"
	"os"
	"strconv"

	"github.com/jessevdk/go-flags"

	"github.com/devflash/flash-uboot/dirs"
	"github.com/devflash/flash-uboot/flash"
	"github.com/devflash/flash-uboot/fwimage"
	"github.com/devflash/flash-uboot/logger"
	"github.com/devflash/flash-uboot/update"
)

// Standard streams, redirected in testing.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

type options struct {
	Flash          string `long:"flash" choice:"mtd" choice:"mmc" description:"Flash backend to use"`
	Mtd            bool   `long:"mtd" description:"Use the raw MTD partitions (legacy alias for --flash mtd)"`
	Mmc            string `long:"mmc" value-name:"DEVICE" description:"Use an MMC boot partition (legacy alias for --flash mmc DEVICE)"`
	Spl            string `long:"spl" value-name:"FILE" description:"SPL binary"`
	SplOffset      string `long:"spl-offset" value-name:"HEX" description:"SPL offset within the partition or device"`
	Uboot          string `long:"uboot" value-name:"FILE" description:"u-boot binary"`
	UbootOffset    string `long:"uboot-offset" value-name:"HEX" description:"u-boot offset within the partition or device"`
	Write          bool   `long:"write" description:"Flash sections that differ"`
	Verify         bool   `long:"verify" description:"Only compare and report, never write"`
	GetVersion     string `long:"get-version" value-name:"SECTION" description:"Print the version string found in the given flash section"`
	GetFileVersion string `long:"get-file-version" value-name:"FILE" description:"Print the version string found in a local file"`
	Gpio           string `long:"gpio" value-name:"NUMBER" description:"Flash write protect gpio"`
	List           bool   `long:"list" description:"List the discovered flash partitions"`

	Positional struct {
		Device string `positional-arg-name:"DEVICE" description:"MMC block device"`
	} `positional-args:"yes"`
}

// the i.MX boot ROM expects the SPL image this far into the boot area
const defaultSplOffset = "0x400"

func parseOffset(name, value, dflt string) (uint64, error) {
	if value == "" {
		value = dflt
	}
	v, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %s offset %q: expected a hex number", name, value)
	}
	return v, nil
}

func run(args []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] [DEVICE]"
	if _, err := parser.ParseArgs(args); err != nil {
		return err
	}

	defaults, err := readBoardDefaults(dirs.DefaultsFile)
	if err != nil {
		return err
	}
	defaults.apply(&opts)

	if opts.GetFileVersion != "" {
		content, err := os.ReadFile(opts.GetFileVersion)
		if err != nil {
			return err
		}
		fmt.Fprintln(Stdout, fwimage.ExtractVersion(content))
		return nil
	}

	splOffset, err := parseOffset("spl", opts.SplOffset, defaultSplOffset)
	if err != nil {
		return err
	}
	ubootOffset, err := parseOffset("uboot", opts.UbootOffset, "0x0")
	if err != nil {
		return err
	}

	backend, err := selectBackend(&opts, splOffset, ubootOffset)
	if err != nil {
		return err
	}

	if opts.List {
		listPartitions(backend)
		return nil
	}

	if opts.GetVersion != "" {
		return printFlashVersion(backend, opts.GetVersion)
	}

	candidates, err := loadCandidates(&opts, backend)
	if err != nil {
		return err
	}

	engine := &update.Engine{
		Backend: backend,
		Report:  Stdout,
	}
	if opts.Gpio != "" {
		engine.Guard = flash.NewGPIOGuard(opts.Gpio)
	}

	write := opts.Write && !opts.Verify
	results, err := engine.Run(candidates, write)
	if err != nil {
		return err
	}
	if update.Failed(results) {
		return fmt.Errorf("cannot update all sections")
	}
	if !write && update.NeedsFlash(results) {
		return fmt.Errorf("flash content is out of date")
	}
	return nil
}

func selectBackend(opts *options, splOffset, ubootOffset uint64) (flash.Backend, error) {
	kind := opts.Flash
	switch {
	case kind == "" && opts.Mtd:
		kind = "mtd"
	case kind == "" && opts.Mmc != "":
		kind = "mmc"
		if opts.Positional.Device == "" {
			opts.Positional.Device = opts.Mmc
		}
	}

	switch kind {
	case "mtd":
		return flash.NewMTDBackend(map[flash.Section]uint64{
			flash.SPL:   splOffset,
			flash.UBoot: ubootOffset,
		})
	case "mmc":
		if opts.Positional.Device == "" {
			return nil, fmt.Errorf("cannot use the mmc backend without a DEVICE argument")
		}
		return flash.NewMMCBackend(opts.Positional.Device, splOffset, ubootOffset)
	case "":
		return nil, fmt.Errorf("one of --flash, --mtd or --mmc must be set")
	}
	return nil, fmt.Errorf("cannot use flash backend %q", kind)
}

func loadCandidates(opts *options, backend flash.Backend) ([]*fwimage.Candidate, error) {
	if opts.Spl == "" && opts.Uboot == "" {
		return nil, fmt.Errorf("at least one of --spl or --uboot must be set")
	}

	var candidates []*fwimage.Candidate
	for _, fw := range []struct {
		section flash.Section
		path    string
	}{
		{flash.SPL, opts.Spl},
		{flash.UBoot, opts.Uboot},
	} {
		if fw.path == "" {
			continue
		}
		c, err := fwimage.Open(fw.section, fw.path)
		if err != nil {
			return nil, fmt.Errorf("cannot load %s firmware: %v", fw.section, err)
		}
		if !backend.HasSection(fw.section) {
			return nil, fmt.Errorf("cannot flash %s: no such section on this device", fw.section)
		}
		candidates = append(candidates, c)
		// boards with a redundant u-boot copy get the same image
		if fw.section == flash.UBoot && backend.HasSection(flash.UBootSecond) {
			candidates = append(candidates, c.ForSection(flash.UBootSecond))
		}
	}
	return candidates, nil
}

func listPartitions(backend flash.Backend) {
	if mtd, ok := backend.(*flash.MTDBackend); ok {
		partitions := mtd.Partitions()
		fmt.Fprintf(Stdout, "Found %d partitions in %s\n", len(partitions), dirs.ProcMtd)
		for _, p := range partitions {
			fmt.Fprintf(Stdout, "%s %#x %q\n", p.Device, p.Size, p.Name)
		}
		return
	}
	for _, sec := range flash.Ordered {
		if backend.HasSection(sec) {
			fmt.Fprintf(Stdout, "%s %#x\n", sec, backend.Size(sec))
		}
	}
}

// version strings live close to the image start, no point in digging
// through a whole boot partition
const versionScanLimit = 4 * 1024 * 1024

func printFlashVersion(backend flash.Backend, name string) error {
	sec, err := flash.ParseSection(name)
	if err != nil {
		return err
	}
	if !backend.HasSection(sec) {
		return fmt.Errorf("cannot read version: no %s section on this device", sec)
	}
	length := backend.Size(sec)
	if length > versionScanLimit {
		length = versionScanLimit
	}
	content, err := backend.Read(sec, length)
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, fwimage.ExtractVersion(content))
	return nil
}

func main() {
	if err := logger.SimpleSetup(); err != nil {
		fmt.Fprintf(Stderr, "failed to activate logging: %v\n", err)
	}
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
