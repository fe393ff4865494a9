package uitemplates

import (
	"bytes"
	"fmt"
	"html/template"
)

type HomeParams struct {
	ActiveUser ActiveUserParams

	// Agenda lists the schedules still due today.
	Agenda []HomeAgendaItem
}

type HomeAgendaItem struct {
	PillName     string
	Dosage       string
	Time         string
	Color        string
	Remaining    string
	ReminderLink string
}

var homeText = `{{define "title"}}Home{{end}}
{{define "breadcrumbs" -}}
<li class="breadcrumb-item active" aria-current="page"><a href="/">Home</a></li>
{{- end}}

{{define "content"}}
{{if .ActiveUser.LoggedIn}}
<h1>Today's Medications</h1>

{{if .Agenda}}
<table class="table">
  <thead>
    <tr>
	  <th>Medication</th>
	  <th>Dosage</th>
	  <th>Time</th>
	  <th>Remaining</th>
	  <th></th>
	</tr>
  </thead>
  <tbody>
    {{range .Agenda}}
    <tr>
	  <td><span class="badge" style="background-color: {{.Color}}">&nbsp;</span> {{.PillName}}</td>
	  <td>{{.Dosage}}</td>
	  <td>{{.Time}}</td>
	  <td>{{.Remaining}}</td>
	  <td><a href="{{.ReminderLink}}">Take Now</a></td>
	</tr>
	{{end}}
  </tbody>
</table>
{{else}}
<p>All done for today. Nothing left to take.</p>
{{end}}

<a href="/list-schedules">Manage Schedules</a> | <a href="/chat">Ask MediMate</a> | <a href="/log-out">Log Out</a>
{{else}}
<p>MediMate reminds you to take your medication on time.</p>
<a href="/log-in">Log In</a> | <a href="/register">Register</a>
{{end}}
{{end}}
`

var homeTemplate = template.Must(template.Must(template.New("base").Parse(baseText)).Parse(homeText))

func HomePage(params *HomeParams) ([]byte, error) {
	b := bytes.Buffer{}
	if err := homeTemplate.Execute(&b, params); err != nil {
		return nil, fmt.Errorf("while executing template: %w", err)
	}
	return b.Bytes(), nil
}
