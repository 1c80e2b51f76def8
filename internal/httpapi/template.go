package httpapi

import "html/template"

// reportData feeds the "/" handler's HTML report. Per spec.md §1, the
// browser-side viewer is opaque to this module's contract; this template
// only needs to carry the templated page-0 JSON and summary fields the
// original report consumed.
type reportData struct {
	Filename string
	FileSize int64
	Total    int
	ModeName string
	DataJSON template.JS
	AnomJSON template.JS
	GenID    string
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>sentinelnav — {{.Filename}}</title>
</head>
<body data-gen-id="{{.GenID}}">
<header>
<h1>{{.Filename}}</h1>
<p>{{.FileSize}} bytes, {{.Total}} chunks, mode {{.ModeName}}</p>
</header>
<main id="app"></main>
<script>
window.__SENTINELNAV__ = {
  chunks: {{.DataJSON}},
  anom: {{.AnomJSON}},
  total: {{.Total}}
};
</script>
</body>
</html>
`))
