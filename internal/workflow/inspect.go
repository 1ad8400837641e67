package workflow

import (
	"image"
	"path/filepath"

	pimaging "github.com/ironsheep/smart-trapper/internal/imaging"
	"github.com/ironsheep/smart-trapper/internal/manifest"
)

// FileCheck describes one image file referenced by a job folder.
type FileCheck struct {
	Role    string          `json:"role"`
	Name    string          `json:"name"`
	Path    string          `json:"path"`
	Width   int             `json:"width,omitempty"`
	Height  int             `json:"height,omitempty"`
	Content image.Rectangle `json:"content"`
	Problem string          `json:"problem,omitempty"`
}

// JobInspection reports the state of a job folder.
type JobInspection struct {
	JobDir   string      `json:"jobDir"`
	Document string      `json:"document"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Mode     string      `json:"mode"`
	Trapped  bool        `json:"trapped"`
	Files    []FileCheck `json:"files"`
	Problems int         `json:"problems"`
}

// InspectJob checks every mask and trap image referenced by the job folder
// manifests: it must exist, decode, and match the job canvas. Images are
// read through cache.
func InspectJob(cache *pimaging.ImageCache, jobDir string) (*JobInspection, error) {
	job, err := manifest.ReadJob(jobDir)
	if err != nil {
		return nil, err
	}
	out := &JobInspection{
		JobDir:   jobDir,
		Document: job.DocName,
		Width:    job.WidthPx,
		Height:   job.HeightPx,
		Mode:     job.Mode,
	}
	for _, f := range job.Files {
		out.add(cache, jobDir, "mask", f.Name, f.PNG)
	}

	if !manifest.Exists(jobDir, manifest.TrapsFile) {
		return out, nil
	}
	traps, err := manifest.ReadTraps(jobDir)
	if err != nil {
		return nil, err
	}
	out.Trapped = true
	for _, t := range traps.Traps {
		out.add(cache, jobDir, "trap", t.Source+" over "+t.Target, t.PNG)
	}
	return out, nil
}

func (j *JobInspection) add(cache *pimaging.ImageCache, jobDir, role, name, rel string) {
	fc := FileCheck{Role: role, Name: name, Path: rel}
	defer func() {
		if fc.Problem != "" {
			j.Problems++
		}
		j.Files = append(j.Files, fc)
	}()

	path, err := manifest.ResolvePNG(jobDir, rel)
	if err != nil {
		fc.Problem = err.Error()
		return
	}
	info, err := pimaging.Inspect(cache, path)
	if err != nil {
		fc.Problem = err.Error()
		return
	}
	fc.Path = filepath.ToSlash(rel)
	fc.Width, fc.Height, fc.Content = info.Width, info.Height, info.ContentBounds
	switch {
	case info.Width != j.Width || info.Height != j.Height:
		fc.Problem = "size differs from canvas"
	case !info.HasContent:
		fc.Problem = "empty"
	}
}
