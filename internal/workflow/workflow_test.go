package workflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/config"
	"github.com/ironsheep/smart-trapper/internal/engine"
	"github.com/ironsheep/smart-trapper/internal/export"
	"github.com/ironsheep/smart-trapper/internal/groups"
	"github.com/ironsheep/smart-trapper/internal/host"
	pimaging "github.com/ironsheep/smart-trapper/internal/imaging"
	"github.com/ironsheep/smart-trapper/internal/manifest"
)

func TestDefaultTrapWidth(t *testing.T) {
	tests := []struct {
		res  float64
		want int
	}{
		{300, 5},
		{600, 10},
		{150, 3},
		{72, 1},
		{0, 0},
		{-300, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultTrapWidth(tt.res, 5, 300), "resolution %g", tt.res)
	}
	assert.Equal(t, 5, DefaultTrapWidth(1200, 5, 0))
}

func TestParseTrapWidth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 5},
		{"  ", 5},
		{"8", 8},
		{"2.6", 3},
		{"0", 0},
		{"-2", 5},
		{"wide", 5},
		{"NaN", 5},
		{"Inf", 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTrapWidth(tt.in, 5), "input %q", tt.in)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePlates, m)

	m, err = ParseMode(" Overprint ")
	require.NoError(t, err)
	assert.Equal(t, ModeOverprint, m)

	_, err = ParseMode("knockout")
	assert.Error(t, err)
}

func TestOverlapLayers(t *testing.T) {
	doc := artwork.NewDocument("a.psd", 10, 10, 300)
	plain := artwork.NewPixelLayer("Plain", doc.Canvas())
	mult := artwork.NewPixelLayer("Mult", doc.Canvas())
	mult.BlendMode = artwork.BlendMultiply
	hidden := artwork.NewPixelLayer("Hidden", doc.Canvas())
	hidden.Opacity = 50
	hidden.Visible = false
	faded := artwork.NewPixelLayer("Faded", doc.Canvas())
	faded.FillOpacity = 40
	doc.Layers = []*artwork.Layer{plain, mult, hidden, faded}

	var names []string
	for _, l := range OverlapLayers(doc) {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"Mult", "Faded"}, names)
}

func TestTerminalOperator(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr error
	}{
		{"default", "\n", ModePlates, nil},
		{"overprint", "o\n", ModeOverprint, nil},
		{"retry", "x\nO\n", ModeOverprint, nil},
		{"quit", "q\n", "", ErrAborted},
		{"eof", "", "", ErrAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			op := NewTerminalOperator(strings.NewReader(tt.input), &out)
			got, err := op.ChooseMode(context.Background(), []string{"Red"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Red")
		})
	}
}

func TestTerminalOperatorWidth(t *testing.T) {
	var out bytes.Buffer
	op := NewTerminalOperator(strings.NewReader("12"), &out)
	answer, err := op.TrapWidth(context.Background(), 10, 600)
	require.NoError(t, err)
	assert.Equal(t, "12", answer)
	assert.Contains(t, out.String(), "[10]")

	op = NewTerminalOperator(strings.NewReader(""), &out)
	_, err = op.TrapWidth(context.Background(), 10, 600)
	assert.ErrorIs(t, err, ErrAborted)
}

var (
	redInk = color.NRGBA{R: 200, G: 20, B: 30, A: 255}
	// Off the canvas centre on both axes so a flipped offset shows.
	trapBox = image.Rect(40, 8, 44, 18)
	runTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
)

func paint(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// bundle saves KEY / Red / PAPER as an artwork bundle.
func bundle(t *testing.T, redBlend artwork.BlendMode) string {
	t.Helper()
	doc := artwork.NewDocument("flyer.psd", 80, 60, 300)
	key := artwork.NewPixelLayer("KEY", doc.Canvas())
	paint(key.Pixels, image.Rect(40, 10, 70, 50), color.NRGBA{A: 255})
	red := artwork.NewPixelLayer("Red", doc.Canvas())
	paint(red.Pixels, image.Rect(5, 5, 45, 45), redInk)
	red.BlendMode = redBlend
	paper := artwork.NewPixelLayer("PAPER", doc.Canvas())
	paint(paper.Pixels, doc.Canvas(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	doc.Layers = []*artwork.Layer{key, red, paper}

	dir := t.TempDir()
	require.NoError(t, artwork.Save(doc, dir))
	return dir
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Paths.JobsDir = t.TempDir()
	cfg.Debug.ImportOverlays = false
	return &cfg
}

// fakeEngine checks the job folder and writes one trap for Red over KEY.
type fakeEngine struct {
	t        *testing.T
	calls    int
	width    int
	mode     string
	noOutput bool
	err      error
}

func (f *fakeEngine) Run(_ context.Context, jobDir string, width int, mode string) (*engine.Result, error) {
	f.calls++
	f.width, f.mode = width, mode
	job, err := manifest.ReadJob(jobDir)
	require.NoError(f.t, err)
	assert.Equal(f.t, "KEY", job.KeyLayerName)
	assert.Equal(f.t, width, job.Tolerance)

	res := &engine.Result{ExitCode: 0}
	if f.err != nil || f.noOutput {
		return res, f.err
	}
	img := image.NewNRGBA(image.Rect(0, 0, job.WidthPx, job.HeightPx))
	paint(img, trapBox, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	require.NoError(f.t, pimaging.Save(img, filepath.Join(jobDir, "traps", "Red_over_KEY.png")))
	require.NoError(f.t, manifest.WriteTraps(jobDir, &manifest.Traps{Traps: []manifest.Trap{
		{Source: "Red", Target: "KEY", PNG: "traps/Red_over_KEY.png"},
	}}))
	return res, nil
}

func newController(t *testing.T, eng EngineRunner, op Operator) (*Controller, *config.Config) {
	cfg := testConfig(t)
	c := New(host.NewSession(nil), cfg, eng, op, nil, WithClock(func() time.Time { return runTime }))
	return c, cfg
}

func TestRunEndToEnd(t *testing.T) {
	dir := bundle(t, artwork.BlendNormal)
	eng := &fakeEngine{t: t}
	c, cfg := newController(t, eng, FlagOperator{Width: "4"})

	report, err := c.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, filepath.Join(cfg.Paths.JobsDir, "flyer__2026-03-04__05-06-07"), report.JobDir)
	assert.Equal(t, ModePlates, report.Mode)
	assert.Equal(t, 4, report.TrapWidth)
	assert.Equal(t, 1, eng.calls)
	assert.Equal(t, 4, eng.width)
	assert.Equal(t, "plates", eng.mode)
	require.NotNil(t, report.Import)
	assert.Equal(t, 1, report.Import.Imported)

	_, err = os.Stat(filepath.Join(report.JobDir, export.MasksDir, "KEY_KEY.png"))
	assert.NoError(t, err)
	job, err := manifest.ReadJob(report.JobDir)
	require.NoError(t, err)
	require.Len(t, job.Files, 2)
	redMask, err := pimaging.Open(filepath.Join(report.JobDir, filepath.FromSlash(job.Files[1].PNG)))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(5, 5, 45, 45), pimaging.OpaqueBounds(redMask))
	logData, err := os.ReadFile(filepath.Join(report.JobDir, RunLogName))
	require.NoError(t, err)
	assert.Contains(t, string(logData), report.RunID)

	saved, err := artwork.Load(dir)
	require.NoError(t, err)
	grp := saved.FindAll(groups.GroupName("Red"), nil)
	require.Len(t, grp, 1)
	require.Len(t, grp[0].Children, 2)
	trap := grp[0].Children[0]
	assert.Equal(t, groups.TrapLayerName("Red", "KEY"), trap.Name)
	assert.Equal(t, trapBox, pimaging.OpaqueBounds(trap.Pixels))
	assert.Equal(t, redInk, trap.Pixels.NRGBAAt(trapBox.Min.X, trapBox.Min.Y))
}

func TestRunAsksModeOnlyForOverlaps(t *testing.T) {
	dir := bundle(t, artwork.BlendMultiply)
	eng := &fakeEngine{t: t}
	c, _ := newController(t, eng, FlagOperator{Mode: ModeOverprint})

	report, err := c.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, ModeOverprint, report.Mode)
	assert.Equal(t, "overprint", eng.mode)
	assert.Equal(t, 5, report.TrapWidth, "empty width keeps the default")
}

type abortingOperator struct{}

func (abortingOperator) ChooseMode(context.Context, []string) (Mode, error) { return "", ErrAborted }

func (abortingOperator) TrapWidth(context.Context, int, float64) (string, error) {
	return "", ErrAborted
}

func TestRunAbortedBeforeExport(t *testing.T) {
	dir := bundle(t, artwork.BlendNormal)
	eng := &fakeEngine{t: t}
	c, cfg := newController(t, eng, abortingOperator{})

	report, err := c.Run(context.Background(), dir)
	require.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, report.JobDir)
	assert.Zero(t, eng.calls)

	entries, err := os.ReadDir(cfg.Paths.JobsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsDir(), "no job folder after an abort")
	assert.Equal(t, OrphanLogPrefix+report.RunID+".txt", entries[0].Name())
	assert.Equal(t, filepath.Join(cfg.Paths.JobsDir, entries[0].Name()), report.RunLog)

	logData, err := os.ReadFile(report.RunLog)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "run stopped")
	assert.Contains(t, string(logData), report.RunID)
}

func TestRunWithMissingBundleWritesRunLog(t *testing.T) {
	c, cfg := newController(t, &fakeEngine{t: t}, nil)

	report, err := c.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Empty(t, report.JobDir)
	require.NotEmpty(t, report.RunLog)
	assert.Equal(t, cfg.Paths.JobsDir, filepath.Dir(report.RunLog))

	logData, err := os.ReadFile(report.RunLog)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "run failed")
}

func TestRunEngineWithoutOutputIsFatal(t *testing.T) {
	dir := bundle(t, artwork.BlendNormal)
	c, _ := newController(t, &fakeEngine{t: t, noOutput: true}, nil)

	before, err := os.ReadFile(filepath.Join(dir, artwork.ManifestName))
	require.NoError(t, err)

	report, err := c.Run(context.Background(), dir)
	require.ErrorIs(t, err, engine.ErrNoTrapManifest)
	assert.Nil(t, report.Import)

	after, err := os.ReadFile(filepath.Join(dir, artwork.ManifestName))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "artwork left untouched")

	_, err = os.Stat(filepath.Join(report.JobDir, RunLogName))
	assert.NoError(t, err, "run log flushed on failure")
}

func TestRunEngineError(t *testing.T) {
	dir := bundle(t, artwork.BlendNormal)
	boom := errors.New("boom")
	c, _ := newController(t, &fakeEngine{t: t, err: boom}, nil)

	_, err := c.Run(context.Background(), dir)
	assert.ErrorIs(t, err, boom)
}

func TestRunRejectsLockedJob(t *testing.T) {
	dir := bundle(t, artwork.BlendNormal)
	eng := &fakeEngine{t: t}
	c, cfg := newController(t, eng, nil)

	jobDir, err := export.CreateJobFolder(cfg.Paths.JobsDir, "flyer.psd", runTime)
	require.NoError(t, err)
	held := flock.New(filepath.Join(jobDir, LockName))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = held.Unlock() }()

	_, err = c.Run(context.Background(), dir)
	assert.ErrorIs(t, err, ErrJobLocked)
	assert.Zero(t, eng.calls)
}

type panickyEngine struct{}

func (panickyEngine) Run(context.Context, string, int, string) (*engine.Result, error) {
	panic("engine exploded")
}

func TestRunRecoversPanic(t *testing.T) {
	dir := bundle(t, artwork.BlendNormal)
	c, _ := newController(t, panickyEngine{}, nil)

	report, err := c.Run(context.Background(), dir)
	require.ErrorIs(t, err, ErrPanic)
	logData, rerr := os.ReadFile(filepath.Join(report.JobDir, RunLogName))
	require.NoError(t, rerr)
	assert.Contains(t, string(logData), "engine exploded")
}

func TestExportThenImport(t *testing.T) {
	dir := bundle(t, artwork.BlendNormal)
	eng := &fakeEngine{t: t}
	c, _ := newController(t, eng, nil)

	report, err := c.Export(context.Background(), dir)
	require.NoError(t, err)
	require.NotNil(t, report.Export)
	assert.Equal(t, []string{"Red"}, colorNames(report.Export.Job))

	_, err = eng.Run(context.Background(), report.JobDir, report.TrapWidth, string(report.Mode))
	require.NoError(t, err)

	imp, err := c.Import(context.Background(), dir, report.JobDir)
	require.NoError(t, err)
	assert.Equal(t, 1, imp.Import.Imported)
}

func colorNames(job *manifest.Job) []string {
	var out []string
	for _, c := range job.Colors {
		out = append(out, c.Name)
	}
	return out
}

func TestInspectJob(t *testing.T) {
	dir := bundle(t, artwork.BlendNormal)
	c, _ := newController(t, &fakeEngine{t: t}, nil)
	report, err := c.Export(context.Background(), dir)
	require.NoError(t, err)

	cache := pimaging.NewImageCache()
	got, err := InspectJob(cache, report.JobDir)
	require.NoError(t, err)
	assert.False(t, got.Trapped)
	assert.Zero(t, got.Problems)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "masks/KEY_KEY.png", got.Files[0].Path)

	small := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	paint(small, small.Bounds(), color.NRGBA{A: 255})
	require.NoError(t, pimaging.Save(small, filepath.Join(report.JobDir, "traps", "bad.png")))
	require.NoError(t, manifest.WriteTraps(report.JobDir, &manifest.Traps{Traps: []manifest.Trap{
		{Source: "Red", Target: "KEY", PNG: "traps/bad.png"},
		{Source: "Red", Target: "PAPER", PNG: "traps/missing.png"},
		{Source: "Red", Target: "KEY", PNG: "../escape.png"},
	}}))

	got, err = InspectJob(cache, report.JobDir)
	require.NoError(t, err)
	assert.True(t, got.Trapped)
	assert.Equal(t, 3, got.Problems)
	require.Len(t, got.Files, 5)
	assert.Equal(t, "size differs from canvas", got.Files[2].Problem)
	assert.NotEmpty(t, got.Files[3].Problem)
	assert.NotEmpty(t, got.Files[4].Problem)
}

func TestInspectJobWithoutManifest(t *testing.T) {
	_, err := InspectJob(pimaging.NewImageCache(), t.TempDir())
	assert.ErrorIs(t, err, manifest.ErrMissingManifest)
}
