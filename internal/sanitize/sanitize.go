// Package sanitize cleans user-supplied text before it is stored. Profile
// fields (names, guardian names) are plain text: any markup in them is
// stripped with bluemonday's strict policy so nothing stored can later be
// read as HTML.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all HTML from input and collapses runs of whitespace to a
// single space. The result is plain text: entities are decoded again, so
// "O'Brien" stays "O'Brien". Renderers must still escape it.
func Text(input string) string {
	if input == "" {
		return ""
	}
	stripped := html.UnescapeString(getPolicy().Sanitize(input))
	return strings.Join(strings.Fields(stripped), " ")
}
