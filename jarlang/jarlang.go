// Package jarlang reads locale tables packed inside mod jars.
//
// A jar is a zip archive; every entry named assets/<modid>/lang/<src>.json
// is a locale table. Translated tables are not written back into the jar
// but into an overlay resource directory of the output tree.
package jarlang

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.trai.ch/zerr"
)

// ErrNotArchive is returned when a file is not a readable zip archive.
var ErrNotArchive = zerr.New("not a zip archive")

// Member is one locale table found in an archive.
type Member struct {
	ModID string
	Name  string // entry name inside the archive
	Data  []byte // UTF-8 JSON
}

func entryPattern(srcLang string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|/)assets/([^/]+)/lang/` + regexp.QuoteMeta(srcLang) + `\.json$`)
}

// HasLangEntries reports whether the archive holds at least one
// assets/<modid>/lang/<srcLang>.json entry. Only the central directory is
// read.
func HasLangEntries(path, srcLang string) (bool, error) {
	zr, err := open(path)
	if err != nil {
		return false, err
	}
	defer zr.Close()

	re := entryPattern(srcLang)
	for _, f := range zr.File {
		if re.MatchString(f.Name) {
			return true, nil
		}
	}
	return false, nil
}

// Scan returns every locale table for srcLang in the archive, decoded to
// UTF-8. Entries that cannot be read are reported through skip and left
// out.
func Scan(path, srcLang string, skip func(name string, err error)) ([]Member, error) {
	zr, err := open(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	re := entryPattern(srcLang)
	var members []Member
	for _, f := range zr.File {
		m := re.FindStringSubmatch(f.Name)
		if m == nil || m[1] == "" {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			if skip != nil {
				skip(f.Name, err)
			}
			continue
		}
		members = append(members, Member{ModID: m[1], Name: f.Name, Data: Decode(data)})
	}
	return members, nil
}

// OverlayPath returns where the translated table of modID goes:
// <outRoot>/<overlayDir>/assets/<modid>/lang/<target>.json.
func OverlayPath(outRoot, overlayDir, modID, target string) string {
	return filepath.Join(outRoot, filepath.FromSlash(overlayDir), "assets", modID, "lang", target+".json")
}

// Decode returns b as UTF-8. Invalid UTF-8 is taken to be Latin-1.
func Decode(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	var sb strings.Builder
	sb.Grow(len(b) * 2)
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return []byte(sb.String())
}

func open(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, zerr.With(zerr.Wrap(ErrNotArchive, "opening archive"), "path", path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return zr, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
