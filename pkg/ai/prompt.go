package ai

import (
	"fmt"
	"strings"

	"inboxflow/internal/automation/domain"
)

const (
	systemPromptES = "Eres un analista senior especializado en correos empresariales críticos."
	systemPromptEN = "You are a senior analyst specialized in critical business email."
)

const responseSchema = `{
  "resumenEjecutivo": "%s",
  "prioridad": "%s",
  "categoria": "%s",
  "sentimiento": "%s",
  "requiereAccion": true | false,
  "puntosClave": [],
  "fechasLimite": [],
  "entidadesDetectadas": {
    "personas": [],
    "empresas": [],
    "importes": [],
    "fechas": [],
    "referencias": []
  },
  "riesgosDetectados": [],
  "accionesSugeridas": [],
  "nivelConfianza": 0.0
}`

type promptText struct {
	intro          string
	senderLabel    string
	subjectLabel   string
	dateLabel      string
	unknownDate    string
	bodyLabel      string
	attachLabel    string
	noAttachments  string
	nameLabel      string
	typeLabel      string
	contentLabel   string
	noContent      string
	criteria       string
	formatLabel    string
	summaryHint    string
	priorityValues string
	categoryValues string
	sentimentVals  string
	rules          string
}

var promptsByLanguage = map[string]promptText{
	"es": {
		intro: `Eres una inteligencia artificial experta en análisis de correos electrónicos empresariales.
Actúa como un analista senior que trabaja para directivos.
Interpreta el contexto completo, la intención del remitente, la urgencia, los riesgos y el tono.
Considera los adjuntos como parte esencial del mensaje.`,
		senderLabel:    "Remitente",
		subjectLabel:   "Asunto",
		dateLabel:      "Fecha",
		unknownDate:    "desconocida",
		bodyLabel:      "CUERPO DEL CORREO",
		attachLabel:    "ADJUNTOS",
		noAttachments:  "No hay adjuntos.",
		nameLabel:      "Nombre",
		typeLabel:      "Tipo",
		contentLabel:   "Contenido extraído",
		noContent:      "No se pudo extraer texto",
		criteria:       "Detecta importes, fechas y plazos, riesgos legales o financieros, decisiones importantes y urgencia implícita.",
		formatLabel:    "Devuelve únicamente un JSON válido con esta estructura:",
		summaryHint:    "Resumen claro en 3-5 líneas orientado a directivos",
		priorityValues: "baja | media | alta | urgente",
		categoryValues: "ventas | soporte | facturacion | legal | rrhh | operativo | marketing | otro",
		sentimentVals:  "positivo | neutral | negativo",
		rules:          "No inventes información. Si algo no está claro, indícalo en \"riesgosDetectados\".",
	},
	"en": {
		intro: `You are an AI expert in corporate email analysis.
Act as a senior analyst working for executives.
Interpret the full context, the sender's intent, urgency, risks and tone.
Consider attachments an essential part of the message.
You MUST write every text value of the JSON in ENGLISH, whatever the language of the email.`,
		senderLabel:    "Sender",
		subjectLabel:   "Subject",
		dateLabel:      "Date",
		unknownDate:    "unknown",
		bodyLabel:      "EMAIL BODY",
		attachLabel:    "ATTACHMENTS",
		noAttachments:  "No attachments.",
		nameLabel:      "Name",
		typeLabel:      "Type",
		contentLabel:   "Extracted content",
		noContent:      "Text could not be extracted",
		criteria:       "Detect monetary amounts, dates and deadlines, legal or financial risks, important decisions and implicit urgency.",
		formatLabel:    "Return ONLY a valid JSON object with this structure:",
		summaryHint:    "Clear 3-5 line summary for executives",
		priorityValues: "low | medium | high | urgent",
		categoryValues: "sales | support | billing | legal | hr | operations | marketing | other",
		sentimentVals:  "positive | neutral | negative",
		rules:          "Do not make up information. If something is unclear, say so in \"riesgosDetectados\".",
	},
}

// NormalizeLanguage maps an automation language to a supported prompt
// language. Empty means Spanish, anything other than Spanish means English.
func NormalizeLanguage(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "es":
		return "es"
	default:
		return "en"
	}
}

// SystemPrompt returns the system message for a language
func SystemPrompt(language string) string {
	if NormalizeLanguage(language) == "es" {
		return systemPromptES
	}
	return systemPromptEN
}

// BuildPrompt renders the analysis request for one email
func BuildPrompt(doc domain.EmailDocument, language string) string {
	p := promptsByLanguage[NormalizeLanguage(language)]

	date := doc.Date
	if date == "" {
		date = p.unknownDate
	}

	var b strings.Builder
	b.WriteString(p.intro)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %s\n", p.senderLabel, doc.Sender)
	fmt.Fprintf(&b, "%s: %s\n", p.subjectLabel, doc.Subject)
	fmt.Fprintf(&b, "%s: %s\n\n", p.dateLabel, date)

	fmt.Fprintf(&b, "%s:\n%s\n\n", p.bodyLabel, doc.PlainText)

	fmt.Fprintf(&b, "%s:\n", p.attachLabel)
	if len(doc.Attachments) == 0 {
		b.WriteString(p.noAttachments)
		b.WriteString("\n")
	}
	for _, a := range doc.Attachments {
		content := a.ExtractedText
		if content == "" {
			content = p.noContent
		}
		fmt.Fprintf(&b, "%s: %s\n%s: %s\n%s:\n%s\n", p.nameLabel, a.Name, p.typeLabel, a.MimeType, p.contentLabel, content)
	}

	b.WriteString("\n")
	b.WriteString(p.criteria)
	b.WriteString("\n\n")
	b.WriteString(p.formatLabel)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, responseSchema, p.summaryHint, p.priorityValues, p.categoryValues, p.sentimentVals)
	b.WriteString("\n\n")
	b.WriteString(p.rules)
	b.WriteString("\n")
	return b.String()
}
