// Package ref parses and validates the four-component reference strings and
// the 64-character hex checksums used throughout the deployment directory
// manager. Both are pure string operations with no IO, kept separate from
// state/layout so path construction and ref validation can be tested in
// isolation.
package ref

import (
	"fmt"
	"strings"
)

// Type is the first component of a Ref.
type Type string

const (
	App     Type = "app"
	Runtime Type = "runtime"
)

// Ref is a parsed four-component reference: type/name/arch/branch.
type Ref struct {
	Type   Type
	Name   string
	Arch   string
	Branch string
}

// Parse splits s on "/" and validates that it produces exactly four
// non-empty components, the first of which is "app" or "runtime".
//
//	r, err := ref.Parse("app/org.example.Hello/x86_64/stable")
func Parse(s string) (Ref, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 {
		return Ref{}, fmt.Errorf("ref: %q: expected 4 components, got %d", s, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return Ref{}, fmt.Errorf("ref: %q: component %d is empty", s, i)
		}
	}
	t := Type(parts[0])
	if t != App && t != Runtime {
		return Ref{}, fmt.Errorf("ref: %q: type must be %q or %q, got %q", s, App, Runtime, parts[0])
	}
	return Ref{Type: t, Name: parts[1], Arch: parts[2], Branch: parts[3]}, nil
}

// String reassembles the ref into its canonical slash-separated form.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", r.Type, r.Name, r.Arch, r.Branch)
}

// IsApp reports whether the ref names an application (as opposed to a runtime).
func (r Ref) IsApp() bool {
	return r.Type == App
}

const checksumLen = 64

// ValidateChecksum reports an error unless s is exactly 64 lowercase hex characters.
func ValidateChecksum(s string) error {
	if len(s) != checksumLen {
		return fmt.Errorf("ref: checksum %q: want %d characters, got %d", s, checksumLen, len(s))
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("ref: checksum %q: not lowercase hex", s)
		}
	}
	return nil
}

// IsChecksumName reports whether name looks like a checksum-named directory
// entry: exactly 64 characters, none of which need be validated as hex here
// (callers enumerating directories use this as a cheap filter; ValidateChecksum
// is the strict check used before trusting the value as a commit id).
func IsChecksumName(name string) bool {
	return len(name) == checksumLen && !strings.HasPrefix(name, ".")
}
