package uitemplates

import (
	"bytes"
	"fmt"
	"html/template"
)

type ListSchedulesParams struct {
	Schedules []ListSchedulesSchedule
}

type ListSchedulesSchedule struct {
	PillName         string
	Dosage           string
	Time             string
	Days             string
	Remaining        string
	ExpiryDate       string
	Active           bool
	EditLink         string
	DeleteLink       string
	RecordRefillLink string
}

var listSchedulesText = `
{{define "title"}}My Schedules{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="/list-schedules">My Schedules</a></li>
{{- end}}

{{define "content"}}
<h1>My Schedules</h1>

<table class="table">
  <thead>
    <tr>
	  <th>Medication</th>
	  <th>Dosage</th>
	  <th>Time</th>
	  <th>Days</th>
	  <th>Remaining</th>
	  <th>Expires</th>
	  <th>Active</th>
	  <th></th>
	</tr>
  </thead>
  <tbody>
    {{range .Schedules}}
    <tr>
	  <td>{{.PillName}}</td>
	  <td>{{.Dosage}}</td>
	  <td>{{.Time}}</td>
	  <td>{{.Days}}</td>
	  <td>{{.Remaining}}</td>
	  <td>{{.ExpiryDate}}</td>
	  <td>{{if .Active}}Yes{{else}}No{{end}}</td>
	  <td>
	    <a href="{{.EditLink}}">Edit</a>
	    <a href="{{.RecordRefillLink}}">Record Refill</a>
	    <form method="POST" action="{{.DeleteLink}}" style="display: inline">
		  <button type="submit" class="btn btn-link p-0 align-baseline">Delete</button>
		</form>
	  </td>
	</tr>
	{{end}}
  </tbody>
</table>

<a href="/create-schedule">Create New Schedule</a>
{{end}}
`

var listSchedulesTemplate = template.Must(template.Must(template.New("base").Parse(baseText)).Parse(listSchedulesText))

func ListSchedulesPage(params *ListSchedulesParams) ([]byte, error) {
	b := bytes.Buffer{}
	if err := listSchedulesTemplate.Execute(&b, params); err != nil {
		return nil, fmt.Errorf("while executing template: %w", err)
	}
	return b.Bytes(), nil
}
