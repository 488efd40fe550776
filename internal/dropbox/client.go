package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAPIBase     = "https://api.dropboxapi.com"
	defaultContentBase = "https://content.dropboxapi.com"

	// DefaultRequestTimeout bounds every provider call. A provider call
	// that never returns must not hang the calling tool invocation.
	DefaultRequestTimeout = 10 * time.Second
)

// TokenSource supplies a valid bearer token for provider calls.
// Implemented by the auth token manager.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenSource returns a TokenSource that always yields the given
// token. Useful for long-lived tokens and tests.
func StaticTokenSource(token string) TokenSource {
	return staticTokenSource(token)
}

type staticTokenSource string

func (s staticTokenSource) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

// Client is a thin client for the Dropbox HTTP API.
type Client struct {
	httpClient  *http.Client
	tokens      TokenSource
	apiBase     string
	contentBase string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURLs overrides the API and content endpoints. Used in tests.
func WithBaseURLs(apiBase, contentBase string) Option {
	return func(c *Client) {
		c.apiBase = apiBase
		c.contentBase = contentBase
	}
}

// NewClient creates a Dropbox client that authenticates through tokens.
func NewClient(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultRequestTimeout},
		tokens:      tokens,
		apiBase:     defaultAPIBase,
		contentBase: defaultContentBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMetadata retrieves metadata for a file or folder.
func (c *Client) GetMetadata(ctx context.Context, path string) (*Metadata, error) {
	if path == "" || path == "/" {
		return nil, fmt.Errorf("path is required")
	}
	var meta Metadata
	if err := c.rpc(ctx, "/2/files/get_metadata", map[string]any{"path": path}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ListFolder lists the contents of a folder. Use "/" for the root.
func (c *Client) ListFolder(ctx context.Context, path string, options *ListOptions) (*ListResult, error) {
	req := map[string]any{"path": apiPath(path)}
	if options != nil {
		req["recursive"] = options.Recursive
		req["include_deleted"] = options.IncludeDeleted
		if options.Limit > 0 {
			req["limit"] = options.Limit
		}
	}
	var result ListResult
	if err := c.rpc(ctx, "/2/files/list_folder", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListFolderContinue fetches the next page for a prior ListFolder cursor.
func (c *Client) ListFolderContinue(ctx context.Context, cursor string) (*ListResult, error) {
	if cursor == "" {
		return nil, fmt.Errorf("cursor is required")
	}
	var result ListResult
	if err := c.rpc(ctx, "/2/files/list_folder/continue", map[string]any{"cursor": cursor}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Move moves or renames a file or folder.
func (c *Client) Move(ctx context.Context, fromPath, toPath string) (*Metadata, error) {
	return c.relocate(ctx, "/2/files/move_v2", fromPath, toPath)
}

// Copy copies a file or folder.
func (c *Client) Copy(ctx context.Context, fromPath, toPath string) (*Metadata, error) {
	return c.relocate(ctx, "/2/files/copy_v2", fromPath, toPath)
}

func (c *Client) relocate(ctx context.Context, endpoint, fromPath, toPath string) (*Metadata, error) {
	if fromPath == "" || toPath == "" {
		return nil, fmt.Errorf("from and to paths are required")
	}
	var result struct {
		Metadata Metadata `json:"metadata"`
	}
	req := map[string]any{"from_path": fromPath, "to_path": toPath, "autorename": false}
	if err := c.rpc(ctx, endpoint, req, &result); err != nil {
		return nil, err
	}
	return &result.Metadata, nil
}

// Delete deletes a file or folder. The provider keeps its own revision
// history for a limited window; this is distinct from the server's recycle
// bin handling.
func (c *Client) Delete(ctx context.Context, path string) (*Metadata, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	var result struct {
		Metadata Metadata `json:"metadata"`
	}
	if err := c.rpc(ctx, "/2/files/delete_v2", map[string]any{"path": path}, &result); err != nil {
		return nil, err
	}
	return &result.Metadata, nil
}

// PermanentlyDelete erases a file or folder, bypassing provider revision
// history. Only available on certain account types.
func (c *Client) PermanentlyDelete(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	return c.rpc(ctx, "/2/files/permanently_delete", map[string]any{"path": path}, nil)
}

// CreateFolder creates a folder. Creating a folder that already exists
// returns a conflict error; callers treating creation as idempotent should
// check IsConflict.
func (c *Client) CreateFolder(ctx context.Context, path string) (*Metadata, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	var result struct {
		Metadata Metadata `json:"metadata"`
	}
	req := map[string]any{"path": path, "autorename": false}
	if err := c.rpc(ctx, "/2/files/create_folder_v2", req, &result); err != nil {
		return nil, err
	}
	result.Metadata.Tag = "folder"
	return &result.Metadata, nil
}

// Search searches file and folder names and content.
func (c *Client) Search(ctx context.Context, query string, options *SearchOptions) ([]*SearchMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	searchOpts := map[string]any{}
	if options != nil {
		if options.PathScope != "" {
			searchOpts["path"] = options.PathScope
		}
		if options.MaxResults > 0 {
			searchOpts["max_results"] = options.MaxResults
		}
		if len(options.FileExtensions) > 0 {
			searchOpts["file_extensions"] = options.FileExtensions
		}
	}

	var result struct {
		Matches []struct {
			Metadata struct {
				Metadata Metadata `json:"metadata"`
			} `json:"metadata"`
		} `json:"matches"`
	}
	req := map[string]any{"query": query, "options": searchOpts}
	if err := c.rpc(ctx, "/2/files/search_v2", req, &result); err != nil {
		return nil, err
	}

	matches := make([]*SearchMatch, len(result.Matches))
	for i, m := range result.Matches {
		meta := m.Metadata.Metadata
		matches[i] = &SearchMatch{Metadata: &meta}
	}
	return matches, nil
}

// GetTemporaryLink returns a short-lived direct download link for a file.
func (c *Client) GetTemporaryLink(ctx context.Context, path string) (*TemporaryLink, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	var result TemporaryLink
	if err := c.rpc(ctx, "/2/files/get_temporary_link", map[string]any{"path": path}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Upload uploads a file in a single request (provider limit: 150 MB).
func (c *Client) Upload(ctx context.Context, path string, content io.Reader, options *UploadOptions) (*Metadata, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if content == nil {
		return nil, fmt.Errorf("content is required")
	}

	arg := map[string]any{"path": path}
	if options != nil {
		if options.Mode != "" {
			arg["mode"] = options.Mode
		}
		arg["autorename"] = options.Autorename
		arg["mute"] = options.Mute
		if options.ClientModified != nil {
			arg["client_modified"] = options.ClientModified.UTC().Format("2006-01-02T15:04:05Z")
		}
	}

	resp, err := c.contentRequest(ctx, "/2/files/upload", arg, content)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var meta Metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	meta.Tag = "file"
	return &meta, nil
}

// Download downloads a file's content. The caller must close the returned
// reader. Metadata is parsed from the provider's result header.
func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, *Metadata, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("path is required")
	}

	resp, err := c.contentRequest(ctx, "/2/files/download", map[string]any{"path": path}, nil)
	if err != nil {
		return nil, nil, err
	}

	var meta *Metadata
	if header := resp.Header.Get("Dropbox-API-Result"); header != "" {
		meta = &Metadata{}
		if err := json.Unmarshal([]byte(header), meta); err != nil {
			resp.Body.Close()
			return nil, nil, fmt.Errorf("failed to decode download metadata: %w", err)
		}
	}
	return resp.Body, meta, nil
}

// rpc issues a JSON RPC-style call against the API endpoint and decodes the
// response into out (out may be nil for endpoints with empty responses).
func (c *Client) rpc(ctx context.Context, endpoint string, request any, out any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// contentRequest issues a call against the content endpoint with the
// request arguments in the Dropbox-API-Arg header.
func (c *Client) contentRequest(ctx context.Context, endpoint string, arg any, body io.Reader) (*http.Response, error) {
	argJSON, err := json.Marshal(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request arg: %w", err)
	}

	if body == nil {
		body = bytes.NewReader(nil)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentBase+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Dropbox-API-Arg", string(argJSON))
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.decodeError(resp)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var providerErr struct {
		ErrorSummary string `json:"error_summary"`
	}
	summary := ""
	if err := json.Unmarshal(body, &providerErr); err == nil {
		summary = providerErr.ErrorSummary
	}
	return classifyError(resp.StatusCode, summary)
}

// apiPath converts a normalized path to the provider's convention: the
// root folder is addressed as the empty string.
func apiPath(path string) string {
	if path == "/" {
		return ""
	}
	return path
}
