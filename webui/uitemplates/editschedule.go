package uitemplates

import (
	"bytes"
	"fmt"
	"html/template"
)

// EditScheduleParams renders both the create form (empty ScheduleID) and the
// edit form for an existing schedule.
type EditScheduleParams struct {
	ScheduleID string
	SelfLink   string
	UserError  string

	PillName   string
	Dosage     string
	TimeOfDay  string
	TimeHour   int
	TimeMinute int
	Days       map[string]bool
	Color      string
	TotalPills int64
	ExpiryDate string
	Active     bool
}

// Weekdays is the form's rendering order.
var Weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

var editScheduleText = `
{{define "title"}}{{if .ScheduleID}}Edit Schedule{{else}}Create Schedule{{end}}{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item"><a href="/list-schedules">My Schedules</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="{{.SelfLink}}">{{if .ScheduleID}}Edit{{else}}Create{{end}} Schedule</a></li>
{{- end}}

{{define "content"}}
<h1>{{if .ScheduleID}}Edit Schedule{{else}}Add a new schedule:{{end}}</h1>

{{if .UserError}}
  <div class="alert alert-danger" role="alert">
    Error: {{.UserError}}
  </div>
{{end}}

<form method="POST">
  <div class="mb-3">
    <label for="pill-name" class="form-label">Pill Name</label>
    <input id="pill-name" type="text" name="pill-name" value="{{.PillName}}" class="form-control" required>
  </div>

  <div class="mb-3">
    <label for="dosage" class="form-label">Dosage</label>
    <input id="dosage" type="text" name="dosage" value="{{.Dosage}}" class="form-control" required>
  </div>

  <div class="mb-3">
    <label for="time-of-day" class="form-label">Time of Day</label>
    <select id="time-of-day" name="time-of-day" class="form-select">
      <option value="morning" {{if eq .TimeOfDay "morning"}}selected{{end}}>Morning</option>
      <option value="afternoon" {{if eq .TimeOfDay "afternoon"}}selected{{end}}>Afternoon</option>
      <option value="night" {{if eq .TimeOfDay "night"}}selected{{end}}>Night</option>
    </select>
  </div>

  <div class="mb-3">
    <label for="time-hour" class="form-label">Hour</label>
    <input id="time-hour" type="number" name="time-hour" min="0" max="23" value="{{.TimeHour}}" class="form-control" required>
    <label for="time-minute" class="form-label">Minute</label>
    <input id="time-minute" type="number" name="time-minute" min="0" max="59" value="{{.TimeMinute}}" class="form-control" required>
  </div>

  <div class="mb-3">
    <span class="form-label">Days of Week</span>
    {{$days := .Days}}
    {{range weekdays}}
    <div class="form-check">
      <input class="form-check-input" type="checkbox" name="days" value="{{.}}" id="day-{{.}}" {{if index $days .}}checked{{end}}>
      <label class="form-check-label" for="day-{{.}}">{{.}}</label>
    </div>
    {{end}}
  </div>

  <div class="mb-3">
    <label for="color" class="form-label">Color</label>
    <input id="color" type="color" name="color" value="{{.Color}}" class="form-control form-control-color">
  </div>

  <div class="mb-3">
    <label for="total-pills" class="form-label">Total Pack Size</label>
    <input id="total-pills" type="number" name="total-pills" min="1" value="{{.TotalPills}}" class="form-control" required>
  </div>

  <div class="mb-3">
    <label for="expiry-date" class="form-label">Expiry Date</label>
    <input id="expiry-date" type="date" name="expiry-date" value="{{.ExpiryDate}}" class="form-control" required>
  </div>

  {{if .ScheduleID}}
  <div class="form-check mb-3">
    <input class="form-check-input" type="checkbox" name="active" id="active" {{if .Active}}checked{{end}}>
    <label class="form-check-label" for="active">Active</label>
  </div>
  {{end}}

  <button type="submit" class="btn btn-primary">{{if .ScheduleID}}Save{{else}}Add Schedule{{end}}</button>
</form>
{{end}}
`

var editScheduleTemplate = template.Must(template.Must(template.New("base").Funcs(template.FuncMap{
	"weekdays": func() []string { return Weekdays },
}).Parse(baseText)).Parse(editScheduleText))

func EditSchedulePage(params *EditScheduleParams) ([]byte, error) {
	if params.Days == nil {
		params.Days = map[string]bool{}
	}
	b := bytes.Buffer{}
	if err := editScheduleTemplate.Execute(&b, params); err != nil {
		return nil, fmt.Errorf("while executing template: %w", err)
	}
	return b.Bytes(), nil
}
