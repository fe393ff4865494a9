package uitemplates

import (
	"bytes"
	"fmt"
	"html/template"
)

type RecordRefillParams struct {
	ScheduleID string
	PillName   string
	SelfLink   string
	UserError  string
}

var recordRefillText = `
{{define "title"}}Record Refill{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item"><a href="/list-schedules">My Schedules</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="{{.SelfLink}}">Record Refill</a></li>
{{- end}}

{{define "content"}}
<h1>Record refill for {{.PillName}}:</h1>

{{if .UserError}}
  <div class="alert alert-danger" role="alert">
    Error: {{.UserError}}
  </div>
{{end}}

<form method="POST">
  <div class="mb-3">
    <label for="refill-date" class="form-label">Refill Date</label>
    <input id="refill-date"
           type="date"
	       name="refill-date"
		   value=""
		   class="form-control"
		   required>
  </div>

  <button type="submit" class="btn btn-primary">Record Refill</button>
</form>
{{end}}
`

var recordRefillTemplate = template.Must(template.Must(template.New("base").Parse(baseText)).Parse(recordRefillText))

func RecordRefillPage(params *RecordRefillParams) ([]byte, error) {
	b := bytes.Buffer{}
	if err := recordRefillTemplate.Execute(&b, params); err != nil {
		return nil, fmt.Errorf("while executing template: %w", err)
	}
	return b.Bytes(), nil
}
