package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/export"
	"github.com/ironsheep/smart-trapper/internal/reimport"
	"github.com/ironsheep/smart-trapper/internal/workflow"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "trap_run", "trap_width").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "trap_run":
		return s.handleTrapRun(ctx, args)
	case "trap_export":
		return s.handleTrapExport(ctx, args)
	case "trap_import":
		return s.handleTrapImport(ctx, args)
	case "trap_overlay":
		return s.handleTrapOverlay(ctx, args)
	case "trap_plates":
		return s.handleTrapPlates(args)
	case "trap_job":
		return s.handleTrapJob(args)
	case "trap_width":
		return s.handleTrapWidth(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decode(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) newController(op workflow.Operator) (*workflow.Controller, error) {
	if s.controller == nil {
		return nil, errors.New("no workflow configured")
	}
	return s.controller(op), nil
}

// === Workflow Handlers ===

type runArgs struct {
	Bundle string   `json:"bundle"`
	Mode   string   `json:"mode"`
	Width  *float64 `json:"width"`
}

func (a runArgs) operator() (workflow.Operator, error) {
	if strings.TrimSpace(a.Bundle) == "" {
		return nil, errors.New("bundle is required")
	}
	mode, err := workflow.ParseMode(a.Mode)
	if err != nil {
		return nil, err
	}
	op := workflow.FlagOperator{Mode: mode}
	if a.Width != nil {
		op.Width = strconv.FormatFloat(*a.Width, 'f', -1, 64)
	}
	return op, nil
}

// ImportResult reports an import pass.
type ImportResult struct {
	Total    int            `json:"total"`
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Reasons  map[string]int `json:"reasons,omitempty"`
	Layers   []string       `json:"layers,omitempty"`
	Overlays int            `json:"overlays,omitempty"`
}

func importResult(sum *reimport.Summary) *ImportResult {
	if sum == nil {
		return nil
	}
	out := &ImportResult{
		Total:    sum.Total,
		Imported: sum.Imported,
		Skipped:  sum.Skipped,
		Layers:   sum.Layers,
		Overlays: sum.Overlays,
	}
	if len(sum.Reasons) > 0 {
		out.Reasons = make(map[string]int, len(sum.Reasons))
		for _, r := range sum.SortedReasons() {
			out.Reasons[string(r)] = sum.Reasons[r]
		}
	}
	return out
}

// RunResult reports a workflow run or export.
type RunResult struct {
	RunID         string        `json:"runId"`
	JobDir        string        `json:"jobDir"`
	RunLog        string        `json:"runLog,omitempty"`
	Mode          string        `json:"mode"`
	TrapWidth     int           `json:"trapWidth"`
	Colors        []string      `json:"colors,omitempty"`
	SkippedPlates []string      `json:"skippedPlates,omitempty"`
	EngineExit    *int          `json:"engineExitCode,omitempty"`
	EngineLog     string        `json:"engineLog,omitempty"`
	Import        *ImportResult `json:"import,omitempty"`
}

func runResult(r *workflow.Report) *RunResult {
	out := &RunResult{
		RunID:     r.RunID,
		JobDir:    r.JobDir,
		RunLog:    r.RunLog,
		Mode:      string(r.Mode),
		TrapWidth: r.TrapWidth,
		Import:    importResult(r.Import),
	}
	if r.Export != nil {
		for _, c := range r.Export.Job.Colors {
			out.Colors = append(out.Colors, c.Name)
		}
		out.SkippedPlates = r.Export.Skipped
	}
	if r.Engine != nil {
		code := r.Engine.ExitCode
		out.EngineExit = &code
		out.EngineLog = r.Engine.LogPath
	}
	return out
}

func (s *Server) handleTrapRun(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a runArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	op, err := a.operator()
	if err != nil {
		return nil, err
	}
	c, err := s.newController(op)
	if err != nil {
		return nil, err
	}
	report, err := c.Run(ctx, a.Bundle)
	if err != nil {
		switch {
		case report != nil && report.JobDir != "":
			return nil, fmt.Errorf("%w (job folder %s)", err, report.JobDir)
		case report != nil && report.RunLog != "":
			return nil, fmt.Errorf("%w (run log %s)", err, report.RunLog)
		}
		return nil, err
	}
	return runResult(report), nil
}

func (s *Server) handleTrapExport(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a runArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	op, err := a.operator()
	if err != nil {
		return nil, err
	}
	c, err := s.newController(op)
	if err != nil {
		return nil, err
	}
	report, err := c.Export(ctx, a.Bundle)
	if err != nil {
		return nil, err
	}
	return runResult(report), nil
}

type jobArgs struct {
	Bundle string `json:"bundle"`
	JobDir string `json:"job_dir"`
}

func (a jobArgs) validate() error {
	if strings.TrimSpace(a.Bundle) == "" {
		return errors.New("bundle is required")
	}
	if strings.TrimSpace(a.JobDir) == "" {
		return errors.New("job_dir is required")
	}
	return nil
}

func (s *Server) handleTrapImport(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a jobArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	c, err := s.newController(nil)
	if err != nil {
		return nil, err
	}
	report, err := c.Import(ctx, a.Bundle, a.JobDir)
	if err != nil {
		return nil, err
	}
	return importResult(report.Import), nil
}

func (s *Server) handleTrapOverlay(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a jobArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	c, err := s.newController(nil)
	if err != nil {
		return nil, err
	}
	n, err := c.Overlay(ctx, a.Bundle, a.JobDir)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"overlays": n}, nil
}

// === Helper Handlers ===

// PlatesResult describes the plate layout of a bundle.
type PlatesResult struct {
	Document   string   `json:"document"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Resolution float64  `json:"resolution"`
	Key        string   `json:"key"`
	Paper      string   `json:"paper"`
	Colors     []string `json:"colors"`
	Overlaps   []string `json:"overlaps,omitempty"`
}

func (s *Server) handleTrapPlates(args json.RawMessage) (interface{}, error) {
	var a struct {
		Bundle string `json:"bundle"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Bundle) == "" {
		return nil, errors.New("bundle is required")
	}
	doc, err := artwork.Load(a.Bundle)
	if err != nil {
		return nil, err
	}
	plates, err := export.DiscoverPlates(doc)
	if err != nil {
		return nil, err
	}
	out := &PlatesResult{
		Document:   doc.Name,
		Width:      doc.Width,
		Height:     doc.Height,
		Resolution: doc.Resolution,
		Key:        plates.Key.Name,
		Paper:      plates.Paper.Name,
		Colors:     []string{},
	}
	for _, l := range plates.Colors {
		out.Colors = append(out.Colors, l.Name)
	}
	for _, l := range workflow.OverlapLayers(doc) {
		out.Overlaps = append(out.Overlaps, l.Name)
	}
	return out, nil
}

func (s *Server) handleTrapJob(args json.RawMessage) (interface{}, error) {
	var a struct {
		JobDir string `json:"job_dir"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.JobDir) == "" {
		return nil, errors.New("job_dir is required")
	}
	return workflow.InspectJob(s.cache, a.JobDir)
}

func (s *Server) handleTrapWidth(args json.RawMessage) (interface{}, error) {
	var a struct {
		Resolution float64 `json:"resolution"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.Resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %g", a.Resolution)
	}
	width := workflow.DefaultTrapWidth(a.Resolution, s.cfg.Trap.BaselineWidth, s.cfg.Trap.BaselineResolution)
	return map[string]interface{}{
		"resolution":         a.Resolution,
		"width":              width,
		"baselineWidth":      s.cfg.Trap.BaselineWidth,
		"baselineResolution": s.cfg.Trap.BaselineResolution,
	}, nil
}
