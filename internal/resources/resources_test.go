package resources

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/server"
)

func TestRegisterResources(t *testing.T) {
	sc := server.NewServerContext(context.Background())
	defer sc.Shutdown()

	s := mcpserver.NewMCPServer("test", "0.0.0")
	if err := RegisterResources(s, sc); err != nil {
		t.Fatalf("RegisterResources() error = %v", err)
	}
}

func TestHandleAuthStatus_NoManager(t *testing.T) {
	sc := server.NewServerContext(context.Background())
	defer sc.Shutdown()

	_, err := handleAuthStatus(context.Background(), mcp.ReadResourceRequest{}, sc)
	if err == nil {
		t.Fatal("expected an error when no auth manager is configured")
	}
}

func TestHandleRecycleBin_NotAuthenticated(t *testing.T) {
	sc := server.NewServerContext(context.Background())
	defer sc.Shutdown()

	_, err := handleRecycleBin(context.Background(), mcp.ReadResourceRequest{}, sc)
	if err == nil {
		t.Fatal("expected an error when no client is configured")
	}
}

func TestParseRecycleEntry(t *testing.T) {
	deleted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		meta        *dropbox.Metadata
		wantVersion string
		wantName    string
	}{
		{
			name: "versioned name",
			meta: &dropbox.Metadata{
				Name:           "c8s3q2v81p30a1b2c3d4_report.pdf",
				PathDisplay:    "/.recycle_bin/c8s3q2v81p30a1b2c3d4_report.pdf",
				Size:           1024,
				ServerModified: deleted,
			},
			wantVersion: "c8s3q2v81p30a1b2c3d4",
			wantName:    "report.pdf",
		},
		{
			name: "name with extra underscores",
			meta: &dropbox.Metadata{
				Name: "v1_my_notes.txt",
			},
			wantVersion: "v1",
			wantName:    "my_notes.txt",
		},
		{
			name: "no version prefix",
			meta: &dropbox.Metadata{
				Name: "orphan.txt",
			},
			wantVersion: "",
			wantName:    "orphan.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := parseRecycleEntry(tt.meta)
			if entry.VersionID != tt.wantVersion {
				t.Errorf("VersionID = %q, want %q", entry.VersionID, tt.wantVersion)
			}
			if entry.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", entry.Name, tt.wantName)
			}
			if entry.RecyclePath != tt.meta.PathDisplay {
				t.Errorf("RecyclePath = %q, want %q", entry.RecyclePath, tt.meta.PathDisplay)
			}
		})
	}
}
