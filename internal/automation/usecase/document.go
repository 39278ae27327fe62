package usecase

import (
	"time"

	"inboxflow/internal/automation/domain"
)

const (
	defaultSubject = "Sin asunto"
	defaultSender  = "Desconocido"
)

// BuildDocument projects a fetched event into the analysis input
func BuildDocument(event *domain.Event) domain.EmailDocument {
	doc := domain.EmailDocument{
		Subject:   event.Subject(),
		Sender:    event.From(),
		Recipient: event.To(),
		Date:      event.Date(),
		PlainText: event.TextBody,
		HTML:      event.HTMLBody,
	}
	if doc.Subject == "" {
		doc.Subject = defaultSubject
	}
	if doc.Sender == "" {
		doc.Sender = defaultSender
	}
	for _, att := range event.Attachments {
		doc.Attachments = append(doc.Attachments, domain.DocumentAttachment{
			Name:      att.Filename,
			MimeType:  att.MimeType,
			SizeBytes: att.Size,
		})
	}
	return doc
}

// SheetRow is the row appended for one execution. Missing analysis fields
// fall back to neutral values.
func SheetRow(now time.Time, sender string, analysis *domain.AnalysisResult) []interface{} {
	if sender == "" {
		sender = "unknown"
	}
	priority, category, sentiment, summary := "desconocida", "otro", "neutral", "Procesado sin IA"
	requiresAction := "no"

	if analysis != nil {
		priority = orDefault(analysis.Priority, priority)
		category = orDefault(analysis.Category, category)
		sentiment = orDefault(analysis.Sentiment, sentiment)
		summary = orDefault(analysis.ExecutiveSummary, summary)
		if analysis.RequiresAction {
			requiresAction = "sí"
		}
	}

	return []interface{}{
		now.UTC().Format(time.RFC3339Nano),
		sender,
		priority,
		category,
		sentiment,
		requiresAction,
		summary,
	}
}

// ChatText picks the analysis summary when there is one, else the configured text
func ChatText(action domain.Action, analysis *domain.AnalysisResult) string {
	if analysis != nil && analysis.ExecutiveSummary != "" {
		return analysis.ExecutiveSummary
	}
	return action.Text
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
