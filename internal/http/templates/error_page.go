package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ErrorPage renders a minimal HTML document describing a failed request.
func ErrorPage(data ErrorPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>")
		b.WriteString(templ.EscapeString(data.Title))
		b.WriteString("</title></head><body><main><h1>")
		b.WriteString(templ.EscapeString(data.StatusLabel))
		b.WriteString("</h1><p>")
		b.WriteString(templ.EscapeString(data.Message))
		b.WriteString("</p>")
		if data.RequestID != "" {
			b.WriteString("<p><small>Request ID: ")
			b.WriteString(templ.EscapeString(data.RequestID))
			b.WriteString("</small></p>")
		}
		b.WriteString("</main></body></html>")

		_, err := io.WriteString(w, b.String())
		return err
	})
}
