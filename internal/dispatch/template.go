package dispatch

import (
	"bytes"
	"errors"
	"text/template"
)

// DefaultTitleTemplate renders the human-readable alert title.
const DefaultTitleTemplate = `Leak Alert: device {{.DeviceID}} flow {{printf "%.2f" .FlowRate}} L/min at {{.Timestamp}}`

type titleData struct {
	DeviceID    string
	FlowRate    float64
	WaterLevel  float64
	Temperature float64
	Timestamp   string
}

// Template renders alert titles.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a title template, falling back to DefaultTitleTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTitleTemplate
	}
	parsed, err := template.New("alert-title").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to an event.
func (t *Template) Render(event Event, timestamp string) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	err := t.tpl.Execute(&buf, titleData{
		DeviceID:    event.DeviceID,
		FlowRate:    event.FlowRate,
		WaterLevel:  event.WaterLevel,
		Temperature: event.Temperature,
		Timestamp:   timestamp,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
