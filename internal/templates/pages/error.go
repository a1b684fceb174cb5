// Package pages holds the portal's server-rendered HTML pages.
package pages

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// ErrorPage renders a standalone error page for browser requests. The
// message is escaped; callers pass only client-safe text.
func ErrorPage(code int, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := templ.EscapeString(fmt.Sprintf("%d %s", code, http.StatusText(code)))
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s | SMART-ASD</title>
</head>
<body>
<main>
<h1>%s</h1>
<p>%s</p>
<p><a href="/">Back to home</a></p>
</main>
</body>
</html>
`, title, title, templ.EscapeString(message))
		return err
	})
}
