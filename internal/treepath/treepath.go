// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package treepath implements the materialized-path encoding for the
// category tree. A path is a string of fixed-width base-36 segments, one
// per tree level, so that lexicographic order on paths equals depth-first
// traversal order and ancestry is a plain prefix check — no recursive
// walking ever touches the database.
package treepath

import (
	"errors"
	"strings"
)

const (
	// StepLen is the character width of one path segment.
	StepLen = 4

	// alphabet orders segment characters so that lexicographic path order
	// matches numeric slot order among siblings.
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// MaxSlot is the largest sibling slot one segment can encode (36^4 - 1).
	MaxSlot = 36*36*36*36 - 1
)

// ErrCorruptPath reports a path whose length or alphabet is invalid.
// Seeing it means the stored tree data is damaged, not that the caller
// passed bad input.
var ErrCorruptPath = errors.New("treepath: corrupt path")

// ErrSlotRange reports a sibling slot outside what a segment can encode.
var ErrSlotRange = errors.New("treepath: slot out of range")

// ChildPath returns the path of the child occupying the given sibling slot
// under parent. An empty parent yields a depth-1 path.
func ChildPath(parent string, slot int) (string, error) {
	if parent != "" {
		if err := Validate(parent); err != nil {
			return "", err
		}
	}
	seg, err := encodeSegment(slot)
	if err != nil {
		return "", err
	}
	return parent + seg, nil
}

// Depth returns the tree depth encoded by path: 1 for a root path,
// increasing by one per segment.
func Depth(path string) (int, error) {
	if err := Validate(path); err != nil {
		return 0, err
	}
	return len(path) / StepLen, nil
}

// Parent returns the path of the node's parent, or "" when path is a
// depth-1 (root) path.
func Parent(path string) (string, error) {
	if err := Validate(path); err != nil {
		return "", err
	}
	return path[:len(path)-StepLen], nil
}

// Slot returns the sibling slot encoded in the final segment of path.
func Slot(path string) (int, error) {
	if err := Validate(path); err != nil {
		return 0, err
	}
	return decodeSegment(path[len(path)-StepLen:])
}

// NextSlot returns the slot immediately after the one encoded in path's
// final segment. Used to allocate the next free sibling position from the
// lexicographically greatest existing child path.
func NextSlot(path string) (int, error) {
	slot, err := Slot(path)
	if err != nil {
		return 0, err
	}
	if slot >= MaxSlot {
		return 0, ErrSlotRange
	}
	return slot + 1, nil
}

// IsAncestor reports whether a is a strict ancestor of b, which for
// materialized paths means a is a proper prefix of b.
func IsAncestor(a, b string) bool {
	return len(a) < len(b) && strings.HasPrefix(b, a)
}

// Ancestors returns every ancestor path of path, nearest the root first.
// A depth-1 path has no ancestors.
func Ancestors(path string) ([]string, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	var out []string
	for i := StepLen; i < len(path); i += StepLen {
		out = append(out, path[:i])
	}
	return out, nil
}

// Validate checks that path is non-empty, a whole number of segments long,
// and drawn entirely from the path alphabet.
func Validate(path string) error {
	if path == "" || len(path)%StepLen != 0 {
		return ErrCorruptPath
	}
	for i := 0; i < len(path); i++ {
		if !strings.ContainsRune(alphabet, rune(path[i])) {
			return ErrCorruptPath
		}
	}
	return nil
}

// encodeSegment renders slot as a zero-padded base-36 segment.
func encodeSegment(slot int) (string, error) {
	if slot < 0 || slot > MaxSlot {
		return "", ErrSlotRange
	}
	buf := make([]byte, StepLen)
	for i := StepLen - 1; i >= 0; i-- {
		buf[i] = alphabet[slot%len(alphabet)]
		slot /= len(alphabet)
	}
	return string(buf), nil
}

// decodeSegment parses one base-36 segment back into its slot number.
func decodeSegment(seg string) (int, error) {
	slot := 0
	for i := 0; i < len(seg); i++ {
		idx := strings.IndexByte(alphabet, seg[i])
		if idx < 0 {
			return 0, ErrCorruptPath
		}
		slot = slot*len(alphabet) + idx
	}
	return slot, nil
}
