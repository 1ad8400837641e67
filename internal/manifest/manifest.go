// Package manifest reads and writes the JSON files exchanged with the
// trapping engine: job.json, written by export, and traps.json, written by
// the engine and read back by import.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/smart-trapper/internal/artwork"
)

const (
	// JobFile is the job manifest name inside a job folder.
	JobFile = "job.json"
	// TrapsFile is the trap manifest name inside a job folder.
	TrapsFile = "traps.json"
)

var (
	// ErrMissingManifest is returned when a manifest file does not exist.
	ErrMissingManifest = errors.New("manifest not found")
	// ErrManifestExists is returned when writing over an existing manifest.
	ErrManifestExists = errors.New("manifest already written")
	// ErrPathEscapes is returned for referenced files outside the job folder.
	ErrPathEscapes = errors.New("path escapes job folder")
)

// Kind distinguishes the key mask from color plate masks.
type Kind string

const (
	KindKey   Kind = "KEY"
	KindColor Kind = "COLOR"
)

// Appearance carries the layer attributes the engine uses to decide which
// plate knocks out which. Blend modes use the host enum notation.
type Appearance struct {
	BlendMode   string  `json:"blendMode"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fillOpacity"`
}

// AppearanceOf reads the appearance of a layer.
func AppearanceOf(l *artwork.Layer) Appearance {
	return Appearance{
		BlendMode:   l.BlendMode.Enum(),
		Opacity:     l.Opacity,
		FillOpacity: l.FillOpacity,
	}
}

// Color is a color plate record.
type Color struct {
	Name string `json:"name"`
	Appearance
}

// File is an exported mask.
type File struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
	Appearance
	PNG string `json:"png"`
}

// Job is the job manifest.
type Job struct {
	DocName        string  `json:"docName"`
	WidthPx        int     `json:"widthPx"`
	HeightPx       int     `json:"heightPx"`
	Resolution     float64 `json:"resolution"`
	Tolerance      int     `json:"tolerance"`
	Mode           string  `json:"mode"`
	KeyLayerName   string  `json:"keyLayerName"`
	PaperLayerName string  `json:"paperLayerName"`
	Colors         []Color `json:"colors"`
	Files          []File  `json:"files"`
}

// Trap is one trap produced by the engine: where source ink spreads over
// target, as a canvas-sized mask image.
type Trap struct {
	Source string `json:"source"`
	Target string `json:"target"`
	PNG    string `json:"png"`
}

// Traps is the trap manifest.
type Traps struct {
	Traps []Trap `json:"traps"`
}

// WriteJob writes job.json into dir. An existing manifest is never replaced.
func WriteJob(dir string, job *Job) error {
	if job.Colors == nil {
		job.Colors = []Color{}
	}
	if job.Files == nil {
		job.Files = []File{}
	}
	return writeOnce(filepath.Join(dir, JobFile), job)
}

// ReadJob reads job.json from dir.
func ReadJob(dir string) (*Job, error) {
	var job Job
	if err := read(filepath.Join(dir, JobFile), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WriteTraps writes traps.json into dir. An existing manifest is never replaced.
func WriteTraps(dir string, traps *Traps) error {
	if traps.Traps == nil {
		traps.Traps = []Trap{}
	}
	return writeOnce(filepath.Join(dir, TrapsFile), traps)
}

// ReadTraps reads traps.json from dir.
func ReadTraps(dir string) (*Traps, error) {
	var traps Traps
	if err := read(filepath.Join(dir, TrapsFile), &traps); err != nil {
		return nil, err
	}
	return &traps, nil
}

// Exists reports whether the named manifest is present in dir.
func Exists(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && info.Mode().IsRegular()
}

// ResolvePNG joins a manifest-relative image path onto dir. Absolute paths
// and paths leaving dir are rejected.
func ResolvePNG(dir, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty png path")
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrPathEscapes)
	}
	return filepath.Join(dir, clean), nil
}

func writeOnce(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", path, ErrManifestExists)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func read(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrMissingManifest)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	// Some engines write a UTF-8 byte order mark.
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
