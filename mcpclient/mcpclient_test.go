package mcpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"agentd/executor"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`{
  "mcpServers": {
    "files": {"command": "npx", "args": ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"], "tool_timeout": "45s"},
    "search": {"url": "https://example.com/mcp/sse", "headers": {"Authorization": "Bearer x"}},
    "docs": {"url": "https://example.com/mcp", "mandatory": true},
    "off": {"command": "true", "disabled": true}
  }
}`)
	config, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	servers := config.ListServers()
	want := []string{"docs", "files", "search"}
	if len(servers) != len(want) {
		t.Fatalf("ListServers() = %v, want %v", servers, want)
	}
	for i := range want {
		if servers[i] != want[i] {
			t.Errorf("ListServers()[%d] = %s, want %s", i, servers[i], want[i])
		}
	}

	protocols := map[string]ProtocolType{"files": ProtocolStdio, "search": ProtocolSSE, "docs": ProtocolHTTP}
	for name, want := range protocols {
		if got := config.MCPServers[name].GetProtocol(); got != want {
			t.Errorf("%s protocol = %s, want %s", name, got, want)
		}
	}
	if d, _ := config.MCPServers["files"].Timeout(); d != 45*time.Second {
		t.Errorf("files timeout = %s", d)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"mcpServers": [`},
		{"stdio without command", `{"mcpServers": {"a": {}}}`},
		{"sse without url", `{"mcpServers": {"a": {"protocol": "sse"}}}`},
		{"unknown protocol", `{"mcpServers": {"a": {"protocol": "ws", "url": "x"}}}`},
		{"bad timeout", `{"mcpServers": {"a": {"command": "x", "tool_timeout": "soon"}}}`},
		{"separator in name", `{"mcpServers": {"a__b": {"command": "x"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.data)); err == nil {
				t.Error("ParseConfig() = nil error, want error")
			}
		})
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	config, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(config.ListServers()) != 0 {
		t.Errorf("servers = %v, want none", config.ListServers())
	}
}

type fakeCaller struct {
	gotName string
	gotArgs map[string]interface{}
	result  *mcp.CallToolResult
	err     error
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.gotName = name
	f.gotArgs = args
	return f.result, f.err
}

func TestToolDefinitionAndExecute(t *testing.T) {
	caller := &fakeCaller{result: &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent("line one"), &mcp.TextContent{Type: "text", Text: "line two"}},
	}}
	tool := mcp.NewTool("read_file",
		mcp.WithDescription("Read a file"),
		mcp.WithString("path", mcp.Required()))

	wrapped := newTool(caller, "files", tool, true, 5*time.Second)
	def := wrapped.Definition()
	if def.Name != "files__read_file" || def.Description != "Read a file" || !def.Mandatory || def.Timeout != 5*time.Second {
		t.Errorf("definition = %+v", def)
	}
	props, ok := def.Parameters["properties"].(map[string]interface{})
	if !ok || props["path"] == nil {
		t.Errorf("parameters = %+v", def.Parameters)
	}

	out, err := wrapped.Execute(context.Background(), map[string]interface{}{"path": "/tmp/x"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "line one\nline two" {
		t.Errorf("Execute() = %q", out)
	}
	if caller.gotName != "read_file" || caller.gotArgs["path"] != "/tmp/x" {
		t.Errorf("CallTool got %s %v", caller.gotName, caller.gotArgs)
	}
}

func TestToolErrors(t *testing.T) {
	tests := []struct {
		name   string
		caller *fakeCaller
	}{
		{"transport error", &fakeCaller{err: errors.New("connection reset")}},
		{"error result", &fakeCaller{result: &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.NewTextContent("no such file")},
		}}},
		{"empty error result", &fakeCaller{result: &mcp.CallToolResult{IsError: true}}},
		{"broken pipe in content", &fakeCaller{result: &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent("[Errno 32] Broken pipe")},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := newTool(tt.caller, "files", mcp.NewTool("read_file"), false, 0)
			if _, err := wrapped.Execute(context.Background(), nil); err == nil {
				t.Error("Execute() = nil error, want error")
			}
		})
	}
}

func TestResultText(t *testing.T) {
	result := &mcp.CallToolResult{Content: []mcp.Content{
		mcp.NewTextContent("hello"),
		mcp.NewEmbeddedResource(mcp.TextResourceContents{URI: "file:///a", Text: "body"}),
	}}
	if got := ResultText(result); got != "hello\nbody" {
		t.Errorf("ResultText() = %q", got)
	}
	if got := ResultText(nil); got != "" {
		t.Errorf("ResultText(nil) = %q", got)
	}
}

func TestManagerSkipsUnreachableServers(t *testing.T) {
	config, err := ParseConfig([]byte(`{"mcpServers": {"gone": {"command": "/nonexistent/agentd-mcp-server"}}}`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	registry := executor.NewRegistry()
	m := NewManager(nil)
	defer m.Close()

	n, err := m.Connect(context.Background(), config, registry)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if n != 0 || registry.Len() != 0 {
		t.Errorf("registered %d tools, registry has %d", n, registry.Len())
	}
}

func TestDetectFatalError(t *testing.T) {
	if detectFatalError("Error: Cannot find module 'x'") == nil {
		t.Error("missing module not detected")
	}
	if detectFatalError("server listening on stdio") != nil {
		t.Error("benign line flagged")
	}
}
