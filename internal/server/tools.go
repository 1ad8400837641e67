package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func bundleProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the artwork bundle directory (holds artwork.toml)",
	}
}

func jobProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to a job folder produced by trap_export or trap_run",
	}
}

func modeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"plates", "overprint"},
		"description": "Trapping mode used when the artwork has overlapping layers. Default plates",
		"default":     "plates",
	}
}

func widthProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Trap width in pixels. Omit to scale the baseline width to the document resolution",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Full workflow
		{
			Name:        "trap_run",
			Description: "Export plate masks, run the trapping engine and merge the resulting trap layers into the artwork bundle. Returns the job folder and an import summary.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"bundle": bundleProperty(),
					"mode":   modeProperty(),
					"width":  widthProperty(),
				},
				"required": []string{"bundle"},
			},
		},

		// Individual phases
		{
			Name:        "trap_export",
			Description: "Write the plate masks and job.json for an artwork bundle into a new job folder without running the engine.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"bundle": bundleProperty(),
					"mode":   modeProperty(),
					"width":  widthProperty(),
				},
				"required": []string{"bundle"},
			},
		},
		{
			Name:        "trap_import",
			Description: "Rebuild trap layers from a job folder's traps.json into the artwork bundle. Existing TRAP__ layers are replaced.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"bundle":  bundleProperty(),
					"job_dir": jobProperty(),
				},
				"required": []string{"bundle", "job_dir"},
			},
		},
		{
			Name:        "trap_overlay",
			Description: "Place the engine's DEBUG__ images from a job folder into a DEBUG__MASKS group at the top of the artwork.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"bundle":  bundleProperty(),
					"job_dir": jobProperty(),
				},
				"required": []string{"bundle", "job_dir"},
			},
		},

		// Helpers
		{
			Name:        "trap_plates",
			Description: "List the key, paper and color plates of an artwork bundle, and the layers whose appearance implies overlapping inks.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"bundle": bundleProperty(),
				},
				"required": []string{"bundle"},
			},
		},
		{
			Name:        "trap_job",
			Description: "Check every mask and trap image referenced by a job folder: present, decodable, canvas-sized and non-empty.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"job_dir": jobProperty(),
				},
				"required": []string{"job_dir"},
			},
		},
		{
			Name:        "trap_width",
			Description: "Compute the default trap width for a document resolution.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"resolution": map[string]interface{}{
						"type":        "number",
						"description": "Document resolution in pixels per inch",
					},
				},
				"required": []string{"resolution"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
