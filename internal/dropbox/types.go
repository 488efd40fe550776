package dropbox

import "time"

// Metadata represents a file or folder in the user's Dropbox.
type Metadata struct {
	// Tag is "file", "folder", or "deleted".
	Tag string `json:".tag,omitempty"`

	// ID is the provider's unique identifier for the item.
	ID string `json:"id,omitempty"`

	// Name is the base name of the item.
	Name string `json:"name"`

	// PathLower is the lowercased full path, used for comparisons.
	PathLower string `json:"path_lower,omitempty"`

	// PathDisplay is the cased path for display.
	PathDisplay string `json:"path_display,omitempty"`

	// Size is the file size in bytes (zero for folders).
	Size int64 `json:"size,omitempty"`

	// Rev is the file revision (files only).
	Rev string `json:"rev,omitempty"`

	// ContentHash is the provider's content hash (files only).
	ContentHash string `json:"content_hash,omitempty"`

	// ClientModified is the caller-supplied modification time.
	ClientModified time.Time `json:"client_modified,omitempty"`

	// ServerModified is when the provider last recorded a change.
	ServerModified time.Time `json:"server_modified,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (m *Metadata) IsFolder() bool {
	return m.Tag == "folder"
}

// ListOptions contains options for listing a folder.
type ListOptions struct {
	// Recursive lists the full subtree instead of one level.
	Recursive bool

	// IncludeDeleted includes deleted entries in results.
	IncludeDeleted bool

	// Limit caps the number of entries per page (provider max: 2000).
	Limit int
}

// ListResult is one page of folder entries.
type ListResult struct {
	Entries []*Metadata `json:"entries"`
	Cursor  string      `json:"cursor"`
	HasMore bool        `json:"has_more"`
}

// UploadOptions contains options for uploading a file.
type UploadOptions struct {
	// Mode is "add" (default), "overwrite", or "update".
	Mode string

	// Autorename lets the provider resolve naming conflicts.
	Autorename bool

	// ClientModified records a caller-supplied modification time.
	ClientModified *time.Time

	// Mute suppresses desktop notifications for the change.
	Mute bool
}

// SearchOptions contains options for searching.
type SearchOptions struct {
	// PathScope restricts results to a subtree ("" searches everything).
	PathScope string

	// MaxResults caps the number of matches (provider max: 1000).
	MaxResults int

	// FileExtensions restricts matches to the given extensions.
	FileExtensions []string
}

// SearchMatch is one search result.
type SearchMatch struct {
	Metadata *Metadata `json:"metadata"`
}

// TemporaryLink is a short-lived direct download link for a file.
type TemporaryLink struct {
	Metadata *Metadata `json:"metadata"`
	Link     string    `json:"link"`
}
