package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var red = color.New(color.FgRed).SprintFunc()

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// useColor reports whether diagnostics written to w should be colored.
func useColor(cfg *Config, w io.Writer) bool {
	if cfg.NoColor || color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func readStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

// readTemplate reads a template file, or stdin when path is "-".
func readTemplate(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = readStdin()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// partialName derives a partial name from a path below dir: the relative
// path with forward slashes and without extension.
func partialName(dir, path string) (string, error) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel)), nil
}

// findPartials returns the partial sources below dir keyed by name.
func findPartials(dir string, extensions []string) (map[string]any, error) {
	partials := map[string]any{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(extensions, filepath.Ext(path)) {
			return nil
		}
		name, err := partialName(dir, path)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		partials[name] = string(src)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading partials: %w", err)
	}
	return partials, nil
}

// parsePartialFlags parses name=path pairs given with --partial.
func parsePartialFlags(values []string) (map[string]any, error) {
	partials := map[string]any{}
	for _, v := range values {
		name, path, ok := strings.Cut(v, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid partial %q, expected name=path", v)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		partials[name] = string(src)
	}
	return partials, nil
}
