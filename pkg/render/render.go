package render

import (
	"fmt"
	"html/template"
	"log"
	"strings"
)

// Content is the structured newsletter text handed to the renderer
type Content struct {
	Subject   string
	Summary   string
	Sections  []Section
	Takeaways []string
	Citations []Citation
}

type Section struct {
	Heading string
	Body    string
}

type Citation struct {
	Title string
	URL   string
}

// Renderer turns structured content into presentation formats. A rendering
// failure degrades to an escaped plain-text body, it never propagates.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("issue").Parse(htmlTemplate)),
	}
}

// RenderHTML renders the email HTML body. Template errors fall back to an
// escaped <pre> rendering of the plain-text form.
func (r *Renderer) RenderHTML(c Content) string {
	var b strings.Builder
	if err := r.tmpl.Execute(&b, c); err != nil {
		log.Printf("[Renderer] HTML render failed, degrading to escaped text: %v", err)
		return "<pre>" + template.HTMLEscapeString(r.RenderText(c)) + "</pre>"
	}
	return b.String()
}

// RenderText renders the plain-text alternative body
func (r *Renderer) RenderText(c Content) string {
	var b strings.Builder

	b.WriteString(c.Subject + "\n")
	b.WriteString(strings.Repeat("=", 70) + "\n\n")

	if c.Summary != "" {
		b.WriteString(c.Summary + "\n\n")
	}

	for _, s := range c.Sections {
		b.WriteString(s.Heading + "\n")
		b.WriteString(strings.Repeat("-", len(s.Heading)) + "\n")
		b.WriteString(s.Body + "\n\n")
	}

	if len(c.Takeaways) > 0 {
		b.WriteString("Key takeaways\n-------------\n")
		for _, t := range c.Takeaways {
			b.WriteString("* " + t + "\n")
		}
		b.WriteString("\n")
	}

	if len(c.Citations) > 0 {
		b.WriteString("Sources\n-------\n")
		for i, cit := range c.Citations {
			fmt.Fprintf(&b, "[%d] %s - %s\n", i+1, cit.Title, cit.URL)
		}
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat("=", 70) + "\n")
	b.WriteString("Thank you for reading!\n")
	return b.String()
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f4f4f4; }
.container { background-color: white; padding: 30px; border-radius: 5px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
h1 { color: #333; border-bottom: 3px solid #007bff; padding-bottom: 10px; }
h2 { color: #555; margin-top: 25px; }
a { color: #007bff; text-decoration: none; }
a:hover { text-decoration: underline; }
.footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; color: #777; font-size: 0.9em; }
</style>
</head>
<body>
<div class="container">
<h1>{{.Subject}}</h1>
{{if .Summary}}<p>{{.Summary}}</p>{{end}}
{{range .Sections}}<h2>{{.Heading}}</h2>
<p>{{.Body}}</p>
{{end}}{{if .Takeaways}}<h2>Key takeaways</h2>
<ul>
{{range .Takeaways}}<li>{{.}}</li>
{{end}}</ul>
{{end}}{{if .Citations}}<h2>Sources</h2>
<ul>
{{range .Citations}}<li><a href="{{.URL}}">{{.Title}}</a></li>
{{end}}</ul>
{{end}}<div class="footer">
<p>Thank you for reading!</p>
</div>
</div>
</body>
</html>
`
