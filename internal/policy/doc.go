// Package policy implements the deletion safety rules that sit between
// the MCP tools and the storage provider.
//
// Every delete request passes through the same pipeline: path
// normalization, block-list and allow-list checks (block wins), a
// sliding 24-hour per-user quota, a metadata fetch, and an explicit
// confirmation gate. Confirmed deletes are soft by default: the item is
// moved into a recycle folder under a fresh version identifier and
// tagged with a retention deadline. Permanent deletes bypass the recycle
// folder but never the policy checks.
package policy
