// Package files_tools implements MCP tools for browsing and modifying
// files in the connected Dropbox account. Read tools are always
// registered; write tools are only registered when the server is not in
// read-only mode. Deletion goes through the policy engine and lives in
// the delete_tools package instead.
package files_tools
