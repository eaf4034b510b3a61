package api

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
)

const scalarCDN = "https://cdn.jsdelivr.net/npm/@scalar/api-reference"

var scalarPage = template.Must(template.New("scalar").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>{{.Title}} - API Documentation</title>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<style>body { margin: 0; padding: 0; }</style>
</head>
<body>
	<script id="api-reference" data-url="{{.SpecURL}}" data-configuration="{{.Configuration}}"></script>
	<script src="{{.CDN}}"></script>
</body>
</html>`))

type scalarMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// scalarConfig is the subset of the Scalar configuration the dispatch docs use.
// The dispatch endpoints start real sends, so the "try it" button stays hidden.
type scalarConfig struct {
	Theme                 string     `json:"theme"`
	Layout                string     `json:"layout"`
	ShowSidebar           bool       `json:"showSidebar"`
	HideDownloadButton    bool       `json:"hideDownloadButton"`
	HideTestRequestButton bool       `json:"hideTestRequestButton"`
	DarkMode              bool       `json:"darkMode"`
	MetaData              scalarMeta `json:"metaData"`
}

// ScalarHandler returns an HTTP handler that serves the Scalar API documentation UI.
// Title and description are escaped, so any operator-supplied text is safe.
func ScalarHandler(specURL, title, description string) http.Handler {
	cfg, err := json.Marshal(scalarConfig{
		Theme:                 "purple",
		Layout:                "modern",
		ShowSidebar:           true,
		HideTestRequestButton: true,
		DarkMode:              true,
		MetaData:              scalarMeta{Title: title, Description: description},
	})
	if err != nil {
		// only plain strings and bools above
		panic(err)
	}

	var page bytes.Buffer
	if err := scalarPage.Execute(&page, map[string]string{
		"Title":         title,
		"SpecURL":       specURL,
		"Configuration": string(cfg),
		"CDN":           scalarCDN,
	}); err != nil {
		panic(err)
	}
	html := page.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(html)
	})
}
