package adapter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/util"
)

// markdownLinkPattern matches [label](url); chat rooms show the bare url.
var markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// ResponseFormatter renders payloads as plain chat text for rooms that have
// no rich embeds.
type ResponseFormatter struct {
	prefix string
}

// NewResponseFormatter creates a new ResponseFormatter. The prefix is put in
// front of every title line.
func NewResponseFormatter(prefix string) *ResponseFormatter {
	return &ResponseFormatter{prefix: strings.TrimSpace(prefix)}
}

type payloadTemplateData struct {
	Icon      string
	Prefix    string
	Title     string
	Fields    []domain.PayloadField
	Timestamp string
}

// FormatPayload renders p as a chat message.
func (f *ResponseFormatter) FormatPayload(p *domain.Payload) string {
	if p == nil {
		return ""
	}

	fields := make([]domain.PayloadField, 0, len(p.Fields))
	for _, field := range p.Fields {
		if strings.TrimSpace(field.Value) == "" {
			continue
		}
		field.Value = markdownLinkPattern.ReplaceAllString(field.Value, "$2")
		fields = append(fields, field)
	}

	data := payloadTemplateData{
		Icon:      eventIcon(p.Kind),
		Prefix:    f.prefix,
		Title:     p.Title,
		Fields:    fields,
		Timestamp: util.FormatTimestamp(p.Timestamp),
	}

	rendered, err := executeFormatterTemplate("event.tmpl", data)
	if err != nil {
		return f.fallbackPayload(data)
	}
	return rendered
}

// FormatCycleReport renders a cycle summary for operator tools.
func (f *ResponseFormatter) FormatCycleReport(organizationID string, report *domain.CycleReport) string {
	if report == nil {
		return fmt.Sprintf("No cycle recorded for %s yet.", organizationID)
	}

	rendered, err := executeFormatterTemplate("cycle_report.tmpl", struct {
		OrganizationID string
		Report         *domain.CycleReport
		Started        string
		Duration       string
		Kinds          []domain.EventKind
	}{
		OrganizationID: organizationID,
		Report:         report,
		Started:        util.FormatTimestamp(report.StartedAt),
		Duration:       report.Duration().String(),
		Kinds:          []domain.EventKind{domain.EventJoined, domain.EventLeft, domain.EventRenamed, domain.EventRankChanged},
	})
	if err != nil {
		return fmt.Sprintf("%s: %s (%s)", organizationID, report.Outcome, report.CycleID)
	}
	return rendered
}

// FormatNameHistory renders a character's recorded names and recent events.
func (f *ResponseFormatter) FormatNameHistory(id domain.CharacterID, history *domain.NameHistory, events []*domain.ChangeEvent) string {
	if history == nil || len(history.Names) == 0 {
		return fmt.Sprintf("No name history for character %s.", id)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name history for %s (last updated %s)\n", id, util.FormatTimestamp(history.LastUpdated)))
	for i, name := range history.Names {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))
	}

	if len(events) > 0 {
		sb.WriteString("\nRecent events\n")
		for _, ev := range events {
			sb.WriteString(fmt.Sprintf("- %s %s %s", util.FormatTimestamp(ev.Timestamp), ev.Kind, ev.DisplayName))
			if ev.Previous != "" || ev.Current != "" {
				if ev.Kind == domain.EventRenamed || ev.Kind == domain.EventRankChanged {
					sb.WriteString(fmt.Sprintf(" (%s → %s)", ev.Previous, ev.Current))
				}
			}
			sb.WriteString("\n")
		}
	}

	return strings.TrimSpace(sb.String())
}

func (f *ResponseFormatter) fallbackPayload(data payloadTemplateData) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n", data.Icon, data.Title))
	for _, field := range data.Fields {
		sb.WriteString(fmt.Sprintf("%s: %s\n", field.Name, field.Value))
	}
	return strings.TrimSpace(sb.String())
}

func eventIcon(kind domain.EventKind) string {
	switch kind {
	case domain.EventJoined:
		return "🟢"
	case domain.EventLeft:
		return "🔴"
	case domain.EventRenamed:
		return "🟠"
	case domain.EventRankChanged:
		return "🟣"
	default:
		return "ℹ️"
	}
}
