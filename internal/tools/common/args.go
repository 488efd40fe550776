package common

// GetUserFromArgs extracts the requesting user identifier from tool
// arguments. Tools that enforce per-user delete quotas pass this through
// to the policy engine.
//
// Priority order:
//  1. Explicit "userId" argument in the request
//  2. "default"
func GetUserFromArgs(args map[string]interface{}) string {
	if userVal, ok := args["userId"].(string); ok && userVal != "" {
		return userVal
	}
	return "default"
}

// GetPathFromArgs extracts the "path" argument, or "" when absent.
func GetPathFromArgs(args map[string]interface{}) string {
	if pathVal, ok := args["path"].(string); ok {
		return pathVal
	}
	return ""
}
