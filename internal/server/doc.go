// Package server implements the MCP (Model Context Protocol) server for the
// trapping workflow.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Workflow:
//   - trap_run: export, run the engine, import and save
//   - trap_export: write plate masks and job.json only
//   - trap_import: rebuild trap layers from an existing job folder
//   - trap_overlay: place the engine's DEBUG__ images
//
// Helpers:
//   - trap_plates: report the key, paper and color plates of a bundle
//   - trap_job: check the images referenced by a job folder
//   - trap_width: default trap width for a resolution
//
// Operator questions (trapping mode, trap width) are answered from the tool
// arguments; omitted answers take their defaults.
//
// Job folder images are read through an in-memory cache that lives as long
// as the server. Job files are written once, so cached copies stay valid.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server
