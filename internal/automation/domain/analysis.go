package domain

// EmailDocument is the structured input handed to the analysis service
type EmailDocument struct {
	Subject     string
	Sender      string
	Recipient   string
	Date        string
	PlainText   string
	HTML        string
	Attachments []DocumentAttachment
}

type DocumentAttachment struct {
	Name          string
	MimeType      string
	SizeBytes     int64
	ExtractedText string
}

// DetectedEntities groups the entities the analysis found in a message
type DetectedEntities struct {
	People     []string `json:"personas,omitempty"`
	Companies  []string `json:"empresas,omitempty"`
	Amounts    []string `json:"importes,omitempty"`
	Dates      []string `json:"fechas,omitempty"`
	References []string `json:"referencias,omitempty"`
}

// AnalysisResult is the structured output of the analysis service.
// JSON keys are the ones the prompt asks the model to produce.
type AnalysisResult struct {
	ExecutiveSummary string            `json:"resumenEjecutivo"`
	Priority         string            `json:"prioridad"`
	Category         string            `json:"categoria"`
	Sentiment        string            `json:"sentimiento"`
	RequiresAction   bool              `json:"requiereAccion"`
	KeyPoints        []string          `json:"puntosClave"`
	Deadlines        []string          `json:"fechasLimite,omitempty"`
	Entities         *DetectedEntities `json:"entidadesDetectadas,omitempty"`
	Risks            []string          `json:"riesgosDetectados,omitempty"`
	SuggestedActions []string          `json:"accionesSugeridas,omitempty"`
	Confidence       float64           `json:"nivelConfianza"`
}
