package render

import (
	"bytes"
	"html/template"
	"strings"
)

// PreactCDN serves the preact modules the client bundle leaves external
const PreactCDN = "https://esm.sh/preact@10.24.3"

var documentTemplate = template.Must(template.New("document").Parse(strings.ReplaceAll(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>{{.Title}}</title>
    <script type="importmap">{"imports":{"preact":"CDN","preact/":"CDN/"}}</script>
  </head>
  <body>
    <div id="app">{{.Body}}</div>
    <script type="module" src="/index.js"></script>
  </body>
</html>`, "CDN", PreactCDN)))

// Document wraps rendered page markup in the HTML shell that loads the
// client bundle. body is inserted verbatim; title is escaped.
func Document(title, body string) (string, error) {
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
