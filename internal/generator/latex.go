package generator

import (
	"fmt"
	"strings"
	texttemplate "text/template"

	"github.com/AmyLu0828/the-resume-hub/internal/resume"
)

// latexReplacer escapes LaTeX special characters in one pass, so replacement
// output is never re-escaped.
var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`#`, `\#`,
	`^`, `\textasciicircum{}`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
	`%`, `\%`,
)

// Escape returns text with LaTeX special characters escaped.
func Escape(text string) string {
	if text == "" {
		return ""
	}
	return latexReplacer.Replace(text)
}

var monthNames = map[string]string{
	"01": "Jan", "02": "Feb", "03": "Mar", "04": "Apr",
	"05": "May", "06": "Jun", "07": "Jul", "08": "Aug",
	"09": "Sep", "10": "Oct", "11": "Nov", "12": "Dec",
}

// FormatDate turns YYYY-MM into "Mon YYYY". An empty date renders as
// "Present"; anything unparseable passes through unchanged.
func FormatDate(date string) string {
	if date == "" {
		return "Present"
	}
	parts := strings.SplitN(date, "-", 2)
	if len(parts) != 2 {
		return date
	}
	month, ok := monthNames[parts[1]]
	if !ok {
		month = parts[1]
	}
	return fmt.Sprintf("%s %s", month, parts[0])
}

// displayText prefers the polished rendering of a description when present.
func displayText(description, polished string) string {
	if polished != "" {
		return polished
	}
	return description
}

// documentTemplate is the deterministic full-document layout used for the
// final high-fidelity pass. It does not depend on the uploaded template.
const documentTemplate = `\documentclass[a4paper,10pt]{article}
\usepackage[margin=1in]{geometry}
\usepackage{enumitem}
\usepackage{hyperref}
\usepackage{titlesec}
\usepackage{parskip}
\titleformat{\section}{\Large\bfseries}{}{0em}{} \titlespacing{\section}{0em}{1em}{0.5em}
\begin{document}

\begin{center}
\textbf{\LARGE {{.FullName}}}{{range .Contact}} \\
{{.Type}}: {{.Value}}{{end}}
\end{center}
{{if .AboutMe}}
\section*{About Me}
{{.AboutMe}}
{{end}}{{if .Education}}
\section*{Education}
{{range .Education}}\textbf{ {{- .Degree}}}, {{.Institution}} \hfill {{.StartDate}} -- {{.EndDate}} \\
{{if .Description}}{{.Description}} \\
{{end}}{{end}}{{end}}{{if .Experience}}
\section*{Experience}
{{range .Experience}}\textbf{ {{- .Title}}}, {{.Company}} \hfill {{.StartDate}} -- {{.EndDate}} \\
{{if .Description}}{{.Description}} \\
{{end}}{{end}}{{end}}{{if .Skills}}
\section*{Skills}
{{join .Skills ", "}}
{{end}}{{range .CustomSections}}
\section*{ {{- .Title}}}
{{.Content}}
{{end}}
\end{document}
`

type documentData struct {
	FullName       string
	Contact        []contactData
	AboutMe        string
	Education      []entryData
	Experience     []entryData
	Skills         []string
	CustomSections []customData
}

type contactData struct {
	Type  string
	Value string
}

type entryData struct {
	Degree      string
	Institution string
	Title       string
	Company     string
	StartDate   string
	EndDate     string
	Description string
}

type customData struct {
	Title   string
	Content string
}

var compiledDocumentTemplate = texttemplate.Must(
	texttemplate.New("resume").
		Funcs(texttemplate.FuncMap{"join": strings.Join}).
		Parse(documentTemplate),
)

// RenderDocument deterministically renders the full document source from
// resume data, escaping everything user-supplied.
func RenderDocument(doc resume.ResumeData) (string, error) {
	data := documentData{
		FullName: strings.TrimSpace(Escape(doc.Name.FirstName) + " " + Escape(doc.Name.LastName)),
		AboutMe:  Escape(displayText(doc.AboutMe.Description, doc.AboutMe.PolishedDescription)),
	}
	if data.FullName == "" {
		data.FullName = "Your Name"
	}

	for _, c := range doc.Contact {
		data.Contact = append(data.Contact, contactData{Type: Escape(c.Type), Value: Escape(c.Value)})
	}
	for _, e := range doc.Education {
		data.Education = append(data.Education, entryData{
			Degree:      Escape(e.Degree),
			Institution: Escape(e.Institution),
			StartDate:   FormatDate(e.StartDate),
			EndDate:     FormatDate(e.EndDate),
			Description: Escape(displayText(e.Description, e.PolishedDescription)),
		})
	}
	for _, e := range doc.Experience {
		data.Experience = append(data.Experience, entryData{
			Title:       Escape(e.Title),
			Company:     Escape(e.Company),
			StartDate:   FormatDate(e.StartDate),
			EndDate:     FormatDate(e.EndDate),
			Description: Escape(displayText(e.Description, e.PolishedDescription)),
		})
	}
	for _, s := range doc.Skills {
		data.Skills = append(data.Skills, Escape(s.Skill))
	}
	for _, s := range doc.CustomSections {
		data.CustomSections = append(data.CustomSections, customData{
			Title:   Escape(s.Title),
			Content: Escape(s.Content),
		})
	}

	var out strings.Builder
	if err := compiledDocumentTemplate.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render document template: %w", err)
	}
	return out.String(), nil
}

// ValidateSource performs a cheap structural check on generated LaTeX:
// required document markers plus balanced braces.
func ValidateSource(source string) bool {
	if source == "" {
		return false
	}
	for _, required := range []string{`\documentclass`, `\begin{document}`, `\end{document}`} {
		if !strings.Contains(source, required) {
			return false
		}
	}

	// 转义括号 \{ \} 是文本字符，不参与配对统计。
	depth := 0
	escaped := false
	for _, r := range source {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
