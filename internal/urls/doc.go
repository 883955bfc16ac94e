// Package urls provides centralized constants for the reference URLs shown
// by the wsproto tools.
//
// Usage:
//
//	import "github.com/muurk/wsproto/internal/urls"
//
//	fmt.Printf("Close codes are listed at %s\n", urls.CloseCodeRegistry)
package urls
