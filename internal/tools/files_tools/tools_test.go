package files_tools

import (
	"context"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/server"
)

func TestGetClient_NotAuthenticated(t *testing.T) {
	sc := server.NewServerContext(context.Background())
	defer sc.Shutdown()

	_, err := getClient(sc)
	if err == nil {
		t.Fatal("expected an error when no client is configured")
	}
}

func TestGetClient_Configured(t *testing.T) {
	client := dropbox.NewClient(dropbox.StaticTokenSource("token"))
	sc := server.NewServerContext(context.Background(), server.WithDropboxClient(client))
	defer sc.Shutdown()

	got, err := getClient(sc)
	if err != nil {
		t.Fatalf("getClient() error = %v", err)
	}
	if got != client {
		t.Error("expected the configured client to be returned")
	}
}

func TestRegisterFilesTools(t *testing.T) {
	sc := server.NewServerContext(context.Background())
	defer sc.Shutdown()

	s := mcpserver.NewMCPServer("test", "0.0.0")
	if err := RegisterFilesTools(s, sc, false); err != nil {
		t.Fatalf("RegisterFilesTools() error = %v", err)
	}
}

func TestRegisterFilesTools_ReadOnly(t *testing.T) {
	sc := server.NewServerContext(context.Background())
	defer sc.Shutdown()

	s := mcpserver.NewMCPServer("test", "0.0.0")
	if err := RegisterFilesTools(s, sc, true); err != nil {
		t.Fatalf("RegisterFilesTools() error = %v", err)
	}
}

func TestParseCommaList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "single value",
			input:    "pdf",
			expected: []string{"pdf"},
		},
		{
			name:     "multiple values",
			input:    "pdf,docx",
			expected: []string{"pdf", "docx"},
		},
		{
			name:     "values with spaces",
			input:    "pdf, docx , txt",
			expected: []string{"pdf", "docx", "txt"},
		},
		{
			name:     "trailing comma",
			input:    "pdf,docx,",
			expected: []string{"pdf", "docx"},
		},
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseCommaList(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("Expected %d items, got %d", len(tt.expected), len(result))
				return
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("Item %d: expected %s, got %s", i, tt.expected[i], v)
				}
			}
		})
	}
}
