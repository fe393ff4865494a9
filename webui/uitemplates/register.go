package uitemplates

import (
	"bytes"
	"fmt"
	"html/template"
)

type RegisterParams struct {
	UserError string
}

var registerText = `{{define "title"}}Register{{end}}
{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="/register">Register</a></li>
{{- end}}

{{define "content"}}
<h1>Create an Account</h1>

{{if .UserError}}
  <div class="alert alert-danger" role="alert">
    Error: {{.UserError}}
  </div>
{{end}}

<form method="POST">
  <div class="mb-3">
    <label for="name" class="form-label">Name</label>
    <input type="text" name="name" id="name" class="form-control" required>
  </div>
  <div class="mb-3">
    <label for="email" class="form-label">Email</label>
    <input type="email" name="email" id="email" class="form-control" required>
  </div>
  <div class="mb-3">
    <label for="password" class="form-label">Password</label>
    <input type="password" name="password" id="password" class="form-control" required>
  </div>
  <button type="submit" class="btn btn-primary">Register</button>
</form>
{{end}}
`

var registerTemplate = template.Must(template.Must(template.New("base").Parse(baseText)).Parse(registerText))

func RegisterPage(params *RegisterParams) ([]byte, error) {
	b := bytes.Buffer{}
	if err := registerTemplate.Execute(&b, params); err != nil {
		return nil, fmt.Errorf("while executing template: %w", err)
	}
	return b.Bytes(), nil
}
