package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// pageTemplates is the parsed set of all page templates (layout_head, layout_tail, index, about).
var pageTemplates = mustParseTemplates()

// aboutBytes is cached output of the about page (no dynamic data).
var aboutBytes []byte

func mustParseTemplates() *template.Template {
	t, err := template.New("").ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		panic("parse templates: " + err.Error())
	}
	return t
}

func init() {
	var err error
	aboutBytes, err = executeTemplateToBytes("about", nil)
	if err != nil {
		panic("about: " + err.Error())
	}
}

// executeTemplate executes the named template (e.g. "index", "about") with data into w.
func executeTemplate(w io.Writer, name string, data interface{}) error {
	return pageTemplates.ExecuteTemplate(w, name, data)
}

// executeTemplateToBytes runs executeTemplate into a buffer and returns the bytes.
func executeTemplateToBytes(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := executeTemplate(&buf, name, data)
	return buf.Bytes(), err
}
