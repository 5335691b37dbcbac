// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxFileSize is the largest file classified; larger files are
// recorded as unreadable.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// sniffLen is how much of a file is inspected for binary content.
const sniffLen = 8192

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ReadText reads a file for classification. It returns a *FileAccessError
// when the file is too large, binary, or unreadable.
//
// Files that start with a UTF-8 or UTF-16 byte order mark are decoded to
// UTF-8. Invalid UTF-8 sequences are dropped rather than failing the file.
func ReadText(path string, maxSize int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", accessError(path, err)
	}
	defer f.Close()

	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return "", accessError(path, err)
	}
	if int64(len(data)) > maxSize {
		return "", &FileAccessError{Path: path, Reason: ReasonTooLarge}
	}

	if hasBOM(data) {
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", &FileAccessError{Path: path, Reason: ReasonDecodeError, Err: err}
		}
		data = decoded
	}

	if IsBinary(data) {
		return "", &FileAccessError{Path: path, Reason: ReasonBinary}
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// IsBinary reports whether content looks binary: a NUL byte in the first
// 8 KiB, or a recognised non-text magic number.
func IsBinary(data []byte) bool {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	// Several magic numbers are short printable prefixes ("BM", "MZ"), so a
	// match only counts when the head also carries control bytes.
	if !hasControlBytes(head) {
		return false
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return false
	}
	return !strings.HasPrefix(kind.MIME.Type, "text") && kind.Extension != "rtf"
}

func hasControlBytes(head []byte) bool {
	for _, b := range head {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f' && b != '\v' && b != 0x1B {
			return true
		}
	}
	return false
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, bomUTF8) ||
		bytes.HasPrefix(data, bomUTF16LE) ||
		bytes.HasPrefix(data, bomUTF16BE)
}

func accessError(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &FileAccessError{Path: path, Reason: ReasonPermissionDenied, Err: err}
	}
	return &FileAccessError{Path: path, Reason: ReasonReadError, Err: err}
}
