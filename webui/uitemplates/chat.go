package uitemplates

import (
	"bytes"
	"fmt"
	"html/template"
)

type ChatParams struct {
	Online    bool
	UserError string
	Messages  []ChatMessage
}

type ChatMessage struct {
	FromUser bool
	Text     string
}

var chatText = `
{{define "title"}}Ask MediMate{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="/chat">Ask MediMate</a></li>
{{- end}}

{{define "content"}}
<h1>Ask MediMate</h1>

<p>
{{if .Online}}
  <span class="badge bg-success">MediMate is online and ready</span>
{{else}}
  <span class="badge bg-danger">Connection error - check configuration</span>
{{end}}
</p>

{{if .UserError}}
  <div class="alert alert-danger" role="alert">
    Error: {{.UserError}}
  </div>
{{end}}

{{range .Messages}}
<div class="card mb-2 {{if .FromUser}}border-primary{{end}}">
  <div class="card-body">
    <strong>{{if .FromUser}}You{{else}}MediMate{{end}}:</strong>
    <pre class="mb-0" style="white-space: pre-wrap; font-family: inherit">{{.Text}}</pre>
  </div>
</div>
{{end}}

<form method="POST">
  <div class="mb-3">
    <label for="message" class="form-label">Your question</label>
    <input id="message" type="text" name="message" value="" class="form-control" required>
  </div>
  <button type="submit" class="btn btn-primary">Send</button>
</form>
{{end}}
`

var chatTemplate = template.Must(template.Must(template.New("base").Parse(baseText)).Parse(chatText))

func ChatPage(params *ChatParams) ([]byte, error) {
	b := bytes.Buffer{}
	if err := chatTemplate.Execute(&b, params); err != nil {
		return nil, fmt.Errorf("while executing template: %w", err)
	}
	return b.Bytes(), nil
}
