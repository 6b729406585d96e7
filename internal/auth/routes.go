// Package auth decides which console pages require a signed-in user and
// runs the server-side identity check that gates them.
package auth

import "strings"

// RouteClass says whether a page may be shown without a session.
type RouteClass string

const (
	Public    RouteClass = "public"
	Protected RouteClass = "protected"
)

// Route is the classification of one console path.
type Route struct {
	Class      RouteClass `json:"class"`
	ShowChrome bool       `json:"show_chrome"`
}

var publicPaths = map[string]bool{
	"/":         true,
	"/login":    true,
	"/register": true,
}

// Classify returns the class of path. Query strings, fragments and trailing
// slashes are ignored. Every path not in the public set is protected, and
// only protected pages show the application chrome.
func Classify(path string) Route {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = "/"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if publicPaths[path] {
		return Route{Class: Public}
	}
	return Route{Class: Protected, ShowChrome: true}
}
