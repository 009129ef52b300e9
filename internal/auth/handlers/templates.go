package handlers

import "html/template"

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{- if .RefreshURL}}
<meta http-equiv="refresh" content="{{.RefreshSeconds}};url={{.RefreshURL}}">
{{- end}}
</head>
<body>
`

const pageFoot = `</body>
</html>
`

var (
	callbackPage = template.Must(template.New("callback").Parse(pageHead + `<main>
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
{{- if .RetryURL}}
<p><a href="{{.RetryURL}}">Try again</a></p>
{{- end}}
</main>
` + pageFoot))

	landingPage = template.Must(template.New("landing").Parse(pageHead + `<main>
<h1>Schema SQL Agent</h1>
<p>Signed in as {{.User.Label}}{{if .User.Email}} ({{.User.Email}}){{end}}</p>
{{- if .User.LinkedDatabaseName}}
<p>Database: {{.User.LinkedDatabaseName}}</p>
{{- end}}
<form method="post" action="{{.LogoutURL}}"><button type="submit">Sign out</button></form>
</main>
` + pageFoot))
)

type pageData struct {
	Title          string
	Heading        string
	Message        string
	RetryURL       string
	RefreshURL     string
	RefreshSeconds int
}
