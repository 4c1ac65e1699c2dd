package prompt

import (
	"strings"
	"text/template"
)

// Persona 是未检索时使用的裸系统提示词。
const Persona = "You are a helpful assistant."

const contextTemplateText = `{{.Persona}}
Please answer the question based on the context provided.
If no context is available, answer based on your knowledge.
If the context is not relevant, ignore it.
Context:
{{- if .Facts}}
{{- range .Facts}}
{{oneLine .}}
{{- end}}
{{- else}} (none)
{{- end}}`

var contextTemplate = template.Must(template.New("context").Funcs(template.FuncMap{
	"oneLine": oneLine,
}).Parse(contextTemplateText))

// oneLine 把多行事实压成一行。
func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
