// Package keyfile parses and serializes the key-file format used by
// .desktop and .service files: INI-shaped groups of key=value pairs,
// including localized keys of the form Key[locale]=value.
package keyfile

import (
	"bytes"
	"fmt"

	"gopkg.in/ini.v1"
)

// KeyFile is a parsed desktop/service file, held open for targeted
// key removal and rewriting before being serialized back out.
type KeyFile struct {
	file *ini.File
}

// Load parses data as a key-file, keeping group and key order so
// serialization writes them back in the same order. Spacing and other
// formatting follow the parser's own output style, so the serialized bytes
// are not guaranteed to match the input.
func Load(data []byte) (*KeyFile, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:    true,
		PreserveSurroundedQuote: true,
		SkipUnrecognizableLines: false,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("keyfile: parse: %w", err)
	}
	return &KeyFile{file: cfg}, nil
}

// Groups returns every group name in file order, including the unnamed
// default group if present and non-empty.
func (k *KeyFile) Groups() []string {
	var names []string
	for _, s := range k.file.Sections() {
		if s.Name() == ini.DefaultSection && len(s.Keys()) == 0 {
			continue
		}
		names = append(names, s.Name())
	}
	return names
}

// Get returns a key's raw string value within group, reporting whether it
// was present.
func (k *KeyFile) Get(group, key string) (string, bool) {
	s, err := k.file.GetSection(group)
	if err != nil {
		return "", false
	}
	if !s.HasKey(key) {
		return "", false
	}
	return s.Key(key).String(), true
}

// Set writes key=value in group, creating the group if needed.
func (k *KeyFile) Set(group, key, value string) {
	s, err := k.file.GetSection(group)
	if err != nil {
		s, _ = k.file.NewSection(group)
	}
	s.Key(key).SetValue(value)
}

// Remove deletes key from group if present. A missing group or key is not
// an error.
func (k *KeyFile) Remove(group, key string) {
	s, err := k.file.GetSection(group)
	if err != nil {
		return
	}
	s.DeleteKey(key)
}

// Bytes serializes the key-file back to its on-disk form.
func (k *KeyFile) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := k.file.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("keyfile: serialize: %w", err)
	}
	return buf.Bytes(), nil
}
