package export

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/you/gnasty-chatconv/internal/core"
)

const (
	inputSuffix  = ".txt"
	outputSuffix = "_new.json"
)

// OutputPath derives the archive path from the input path: every ".txt" is
// replaced with "_new.json", or "_new.json" is appended when there is none.
func OutputPath(input string) string {
	if strings.Contains(input, inputSuffix) {
		return strings.ReplaceAll(input, inputSuffix, outputSuffix)
	}
	return input + outputSuffix
}

// SplitLines splits file content into lines, accepting \n, \r\n and \r
// endings. A final line terminator does not produce an empty trailing line.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// Encode writes doc as JSON indented with two spaces.
func Encode(w io.Writer, doc core.Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(doc), "encode archive")
}

// WriteFile writes doc to path through a temporary file in the same
// directory, so readers never observe a half-written archive.
func WriteFile(path string, doc core.Document) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp output")
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, doc); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp output")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "chmod output")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename output to %s", path)
}
