// Package git derives bundle change events from git history, for bundles that
// live inside a repository and change by commits rather than file edits.
package git
