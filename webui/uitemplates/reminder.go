package uitemplates

import (
	"bytes"
	"fmt"
	"html/template"
)

type ReminderParams struct {
	ScheduleID string
	PillName   string
	Dosage     string
	Time       string
	Color      string
	Recorded   bool
	UserError  string

	RecordManualLink string
	RecordCameraLink string
}

var reminderText = `
{{define "title"}}Reminder: {{.PillName}}{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item active" aria-current="page">Reminder: {{.PillName}}</li>
{{- end}}

{{define "content"}}
{{if .Recorded}}
<div class="alert alert-success" role="alert">
  <h2>Pill Taken Successfully!</h2>
  <p>Great job! We've recorded that you've taken your {{.PillName}}.</p>
  <a href="/">Back to dashboard</a>
</div>
{{else}}
<div class="card border-danger">
  <div class="card-header" style="background-color: {{.Color}}">&nbsp;</div>
  <div class="card-body">
    <h2 class="card-title">{{.PillName}}</h2>
    <p class="card-text">{{.Dosage}}</p>
    <p class="card-text"><strong>Time:</strong> {{.Time}}</p>

    {{if .UserError}}
      <div class="alert alert-danger" role="alert">
        Error: {{.UserError}}
      </div>
    {{end}}

    <form method="POST" action="{{.RecordCameraLink}}" class="mb-2">
      <button type="submit" class="btn btn-primary">Take Pill Now (Camera Check)</button>
    </form>
    <form method="POST" action="{{.RecordManualLink}}" class="mb-2">
      <button type="submit" class="btn btn-secondary">Record Without Camera</button>
    </form>
    <a href="/" class="btn btn-outline-secondary">Skip for Now</a>
  </div>
</div>
{{end}}
{{end}}
`

var reminderTemplate = template.Must(template.Must(template.New("base").Parse(baseText)).Parse(reminderText))

func ReminderPage(params *ReminderParams) ([]byte, error) {
	b := bytes.Buffer{}
	if err := reminderTemplate.Execute(&b, params); err != nil {
		return nil, fmt.Errorf("while executing template: %w", err)
	}
	return b.Bytes(), nil
}
