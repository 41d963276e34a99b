package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"agentd/executor"
)

// ToolSeparator joins server and tool names in the registry
const ToolSeparator = "__"

// QualifiedName returns the registry name of an MCP tool
func QualifiedName(server, tool string) string {
	return server + ToolSeparator + tool
}

// caller is the part of Client a tool needs
type caller interface {
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error)
}

// mcpTool exposes one MCP tool as an executor.Tool
type mcpTool struct {
	client caller
	server string
	tool   mcp.Tool
	def    executor.ToolDefinition
}

func newTool(c caller, server string, tool mcp.Tool, mandatory bool, timeout time.Duration) *mcpTool {
	return &mcpTool{
		client: c,
		server: server,
		tool:   tool,
		def: executor.ToolDefinition{
			Name:        QualifiedName(server, tool.Name),
			Description: tool.Description,
			Parameters:  inputSchema(tool),
			Mandatory:   mandatory,
			Timeout:     timeout,
		},
	}
}

func (t *mcpTool) Definition() executor.ToolDefinition { return t.def }

func (t *mcpTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	result, err := t.client.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return "", err
	}
	text := ResultText(result)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}
	if IsBrokenPipeInContent(text) {
		return "", fmt.Errorf("MCP server %s: %s", t.server, text)
	}
	return text, nil
}

// inputSchema returns the tool's JSON schema as a plain map. The schema is
// taken from the marshalled tool so raw schemas and structured ones read the
// same way.
func inputSchema(tool mcp.Tool) map[string]interface{} {
	fallback := map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	data, err := json.Marshal(tool)
	if err != nil {
		return fallback
	}
	var decoded struct {
		InputSchema map[string]interface{} `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.InputSchema == nil {
		return fallback
	}
	if _, ok := decoded.InputSchema["properties"]; !ok {
		decoded.InputSchema["properties"] = map[string]interface{}{}
	}
	return decoded.InputSchema
}

// ResultText flattens a tool result into the text returned to the model
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes base64]", c.MIMEType, len(c.Data)))
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes base64]", c.MIMEType, len(c.Data)))
		case *mcp.EmbeddedResource:
			parts = append(parts, formatResourceContents(c.Resource))
		case mcp.EmbeddedResource:
			parts = append(parts, formatResourceContents(c.Resource))
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

func formatResourceContents(resource mcp.ResourceContents) string {
	switch r := resource.(type) {
	case *mcp.TextResourceContents:
		return r.Text
	case mcp.TextResourceContents:
		return r.Text
	case *mcp.BlobResourceContents:
		return fmt.Sprintf("[resource %s, %s]", r.URI, r.MIMEType)
	case mcp.BlobResourceContents:
		return fmt.Sprintf("[resource %s, %s]", r.URI, r.MIMEType)
	}
	data, err := json.Marshal(resource)
	if err != nil {
		return ""
	}
	return string(data)
}
