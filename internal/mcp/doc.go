// Package mcp exposes the snapshot store over the Model Context Protocol.
//
// The server registers five tools on a stdio transport:
//   - list_snapshots: stored snapshots, newest first
//   - get_functions: filtered, sorted, paged function listing
//   - diff_snapshots: impact-scored comparison of two snapshots
//   - call_graph_stats: aggregate call-graph statistics
//   - extract_source: one function's source text
//
// Parameter validation failures and missing entities are reported with
// JSON-RPC error codes; tool payloads are indented JSON.
package mcp
