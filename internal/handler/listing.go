package handler

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"

	"camfs/internal/model"
	"camfs/internal/oe"
	"camfs/internal/vpath"
)

const listingDateFormat = `01/02/2006 03:04:05 PM`

var listingIndex = template.Must(template.New(`camfs.listing`).Parse(strings.TrimSpace(`
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>camfs</title>
  <style>body {margin: 0; padding: 0; box-sizing: border-box;} table {width: 95%; margin: auto; table-layout: fixed; border-collapse: collapse;} th, td {border: 1px solid #000; padding: 10px; text-align: center; overflow: hidden; text-overflow: ellipsis; white-space: nowrap;}</style>
</head>
<body>
<h2>Files in {{ .Dir }}</h2>
<table border="1">
<thead><tr><th>Name</th><th>Type</th><th>Size (Bytes)</th><th>Date</th><th>Delete</th></tr></thead>
<tbody>
{{- range .Rows }}
<tr><td><a href="{{ .Href }}">{{ .Name }}</a></td><td>{{ .Kind }}</td><td title="{{ .Human }}">{{ .Size }}</td><td>{{ .Date }}</td><td><form method="post" action="{{ .Delete }}"><button type="submit">Delete</button></form></td></tr>
{{- end }}
</tbody>
</table>
</body>
</html>
`) + "\n"))

type listingRow struct {
	Name   string
	Href   string
	Delete string
	Kind   string
	Size   int64
	Human  string
	Date   string
}

// listing renders the directory named by path. uri is the escaped request
// path; entry links and delete actions are built relative to it.
func (c *Context) listing(w http.ResponseWriter, path vpath.Path, uri string) {
	dir := strings.TrimSuffix(path.Full, `/`)
	if dir == `` {
		dir = `/`
	}
	c.Logger.Debug(`download: listing %s`, dir)

	entries, err := oe.List(c.Volume, dir, true, c.ListBudget, c.Logger)
	if err != nil {
		c.Logger.Error(`download: list %s: %s`, dir, err)
		http.Error(w, `Failed to list directory`, http.StatusInternalServerError)
		return
	}

	rows := make([]listingRow, 0, len(entries))
	for _, entry := range entries {
		href := uri + url.PathEscape(entry.Name)
		if entry.Kind == model.KindDirectory {
			href += `/`
		}
		row := listingRow{
			Name:   entry.Name,
			Href:   href,
			Delete: DeletePrefix + uri + url.PathEscape(entry.Name),
			Kind:   entry.Kind.String(),
			Size:   entry.Size,
			Human:  humanize.IBytes(uint64(entry.Size)),
			Date:   entry.Modified.In(c.Location).Format(listingDateFormat),
		}
		c.Logger.Trace(`download: found %s %s (%d bytes)`, row.Kind, row.Name, row.Size)
		rows = append(rows, row)
	}

	w.Header().Set(`Content-Type`, `text/html; charset=utf-8`)
	w.WriteHeader(http.StatusOK)
	if err := listingIndex.Execute(w, struct {
		Dir  string
		Rows []listingRow
	}{Dir: path.Suffix, Rows: rows}); err != nil {
		c.Logger.Warn(`download: template: %s`, err)
	}
}
