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

// Package update drives the diff-verify-write protocol: it decides
// per section whether the flash content differs from the candidate
// image, reprograms the section behind the write-protect guard when
// asked to, and only reports success after re-reading and re-checking
// the just written content.
package update

import (
	"errors"
	"fmt"
	"io"

	"github.com/devflash/flash-uboot/flash"
	"github.com/devflash/flash-uboot/fwimage"
	"github.com/devflash/flash-uboot/logger"
)

// Status is the final per-section outcome of one engine run.
type Status int

const (
	// StatusMatches means flash content already equals the candidate.
	StatusMatches Status = iota
	// StatusNeedsFlash means the section differs but was not written.
	StatusNeedsFlash
	// StatusUpdated means the section was written and re-verified.
	StatusUpdated
	// StatusFailed means erase, write, read or re-verify failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusMatches:
		return "ok"
	case StatusNeedsFlash:
		return "NEED TO FLASH"
	case StatusUpdated:
		return "UPDATED"
	case StatusFailed:
		return "FAILED"
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// Result is the outcome for one (candidate, section) pair.
type Result struct {
	Section flash.Section
	Status  Status
	Err     error
}

// PreconditionError means a candidate cannot possibly fit its section
// and the whole invocation must stop before anything is written.
type PreconditionError struct {
	Section       flash.Section
	CandidateSize uint64
	SectionSize   uint64
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot flash %s: candidate is %d bytes but the section holds only %d", e.Section, e.CandidateSize, e.SectionSize)
}

// ErrVerifyMismatch is reported when the re-read after a write does
// not match the candidate digest.
var ErrVerifyMismatch = errors.New("flash content does not match the candidate after writing")

// Engine runs the update protocol over one backend. It assumes
// exclusive access to the underlying device nodes for its lifetime.
type Engine struct {
	Backend flash.Backend
	// Guard is the optional gpio write-protect guard; nil when the
	// board has no write-protect pin.
	Guard *flash.GPIOGuard
	// Report receives the one-line per-section status output.
	Report io.Writer
}

func (e *Engine) printf(format string, v ...interface{}) {
	fmt.Fprintf(e.Report, format, v...)
}

// Run processes all candidates in the fixed section order. With write
// set, sections that differ are erased, written and re-verified;
// otherwise the engine only compares and reports. Per-section
// failures do not stop the remaining sections; a size precondition
// failure aborts the whole run before any flash mutation.
func (e *Engine) Run(candidates []*fwimage.Candidate, write bool) ([]Result, error) {
	ordered := make([]*fwimage.Candidate, 0, len(candidates))
	for _, sec := range flash.Ordered {
		for _, c := range candidates {
			if c.Section == sec {
				ordered = append(ordered, c)
			}
		}
	}
	if len(ordered) != len(candidates) {
		return nil, fmt.Errorf("internal error: candidate for unknown section")
	}

	// size preconditions come first, before any digest or write, so
	// that a bad offset computation cannot half-flash the device
	for _, c := range ordered {
		if !e.Backend.HasSection(c.Section) {
			return nil, fmt.Errorf("internal error: no %s section on this device", c.Section)
		}
		if size := e.Backend.Size(c.Section); uint64(len(c.Content)) > size {
			return nil, &PreconditionError{
				Section:       c.Section,
				CandidateSize: uint64(len(c.Content)),
				SectionSize:   size,
			}
		}
	}

	var results []Result
	for _, c := range ordered {
		results = append(results, e.runSection(c, write))
	}
	return results, nil
}

func (e *Engine) runSection(c *fwimage.Candidate, write bool) Result {
	// never compare more bytes than the candidate provides
	current, err := e.Backend.Read(c.Section, uint64(len(c.Content)))
	if err != nil {
		e.printf("%s: %s\n", c.Section, StatusFailed)
		logger.Noticef("cannot read %s section: %v", c.Section, err)
		return Result{Section: c.Section, Status: StatusFailed, Err: err}
	}
	if fwimage.Digest(current) == c.Digest {
		e.printf("%s: %s\n", c.Section, StatusMatches)
		return Result{Section: c.Section, Status: StatusMatches}
	}

	e.printf("%s: %s\n", c.Section, StatusNeedsFlash)
	if !write {
		return Result{Section: c.Section, Status: StatusNeedsFlash}
	}

	e.printf("%s: FLASHING\n", c.Section)
	if err := e.flashSection(c); err != nil {
		e.printf("%s: %s\n", c.Section, StatusFailed)
		logger.Noticef("cannot flash %s section: %v", c.Section, err)
		return Result{Section: c.Section, Status: StatusFailed, Err: err}
	}
	e.printf("%s: %s\n", c.Section, StatusUpdated)
	return Result{Section: c.Section, Status: StatusUpdated}
}

// flashSection erases, writes and re-verifies one section. The guard
// is released on every path out, including erase and write errors and
// a failed re-verify.
func (e *Engine) flashSection(c *fwimage.Candidate) error {
	if e.Guard != nil {
		restore, err := e.Guard.EnableWrites()
		if err != nil {
			return fmt.Errorf("cannot lift write protection: %v", err)
		}
		defer restore()
	}

	if err := e.Backend.EraseSection(c.Section); err != nil {
		return err
	}
	if err := e.Backend.Write(c.Section, c.Content); err != nil {
		return err
	}

	written, err := e.Backend.Read(c.Section, uint64(len(c.Content)))
	if err != nil {
		return err
	}
	if fwimage.Digest(written) != c.Digest {
		return ErrVerifyMismatch
	}
	return nil
}

// Failed returns whether any section ended up in StatusFailed.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFailed {
			return true
		}
	}
	return false
}

// NeedsFlash returns whether any section differed from its candidate
// without having been written.
func NeedsFlash(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusNeedsFlash {
			return true
		}
	}
	return false
}
