// Package delete_tools implements the MCP deletion tools. All deletions
// go through the policy engine, which enforces path allow/block lists,
// the per-user daily quota, and the confirmation gate before anything is
// moved to the recycle bin or permanently removed.
package delete_tools
