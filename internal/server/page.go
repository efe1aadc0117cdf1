// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"html/template"

	"github.com/pdiddy/insurance-extract/internal/session"
)

// pageData is the template input for the single page.
type pageData struct {
	State   session.State
	RawHTML template.HTML
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Insurance PDF Extractor</title>
</head>
<body>
  <header>
    <h1>Insurance PDF Extractor</h1>
    <p>Upload an insurance quote PDF to extract its fields and download them as a spreadsheet.</p>
  </header>

  {{with .State.Error}}<div class="alert error" role="alert">{{.}}</div>{{end}}
  {{with .State.Success}}<div class="alert success" role="status">{{.}}</div>{{end}}

  <section class="upload">
    <form method="post" action="/upload" enctype="multipart/form-data">
      <input type="file" name="file" accept="application/pdf,.pdf" />
      {{with .State.FileName}}<p class="selected">Selected: {{.}}{{with $.State.FilePages}} ({{.}} pages){{end}}</p>{{end}}
      <button type="submit"{{if .State.Loading}} disabled{{end}}>{{if .State.Loading}}Processing...{{else}}Upload &amp; Extract{{end}}</button>
    </form>
  </section>

  {{with .State.Result}}
  <section class="results">
    <h2>Extracted Data</h2>
    {{with $.State.Analysis}}<p class="analysis">Detected as {{.Type}}: {{.TotalPages}} pages ({{.TextPages}} text, {{.ImagePages}} image, {{.MixedPages}} mixed)</p>{{end}}
    <dl class="grid">
      {{range .Fields}}<div class="cell"><dt>{{.Name}}</dt><dd>{{.Display}}</dd></div>
      {{end}}
    </dl>
    <form method="post" action="/download">
      <button type="submit">Download Excel</button>
    </form>
  </section>
  {{end}}

  <section class="raw-text">
    <h2>Extracted Text</h2>
    <div class="formatted">{{.RawHTML}}</div>
  </section>
</body>
</html>
`))
