package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is an on-disk table format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatArrow Format = "arrow"
)

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".arrow", ".ipc", ".feather":
		return FormatArrow, nil
	default:
		return "", fmt.Errorf("unsupported table extension %q", filepath.Ext(path))
	}
}

// Load reads a frame from path, choosing the format by extension.
func Load(path string) (*Frame, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer file.Close()

	var f *Frame
	switch format {
	case FormatCSV:
		f, err = ReadCSV(file, ',')
	case FormatTSV:
		f, err = ReadCSV(file, '\t')
	case FormatArrow:
		f, err = ReadArrow(file)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// Save writes a frame to path, choosing the format by extension.
func Save(path string, f *Frame) error {
	return save(path, func(file *os.File, format Format) error {
		switch format {
		case FormatTSV:
			return WriteCSV(file, f, '\t')
		case FormatArrow:
			return WriteArrow(file, f)
		default:
			return WriteCSV(file, f, ',')
		}
	})
}

// Save writes the score table to path, choosing the format by extension.
func (t *ScoreTable) Save(path string) error {
	return save(path, func(file *os.File, format Format) error {
		switch format {
		case FormatTSV:
			return t.WriteCSV(file, '\t')
		case FormatArrow:
			return t.WriteArrow(file)
		default:
			return t.WriteCSV(file, ',')
		}
	})
}

func save(path string, write func(*os.File, Format) error) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table file: %w", err)
	}
	if err := write(file, format); err != nil {
		_ = file.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return file.Close()
}
