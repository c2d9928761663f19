package domain

import (
	"strings"
	"time"
)

// Sender identifies who authored a session message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Kind classifies a session message.
type Kind string

const (
	KindQuery                    Kind = "query"
	KindSummarizeRequest         Kind = "summarize_request"
	KindGenerateDocumentRequest  Kind = "generate_document_request"
	KindEntitiesRequest          Kind = "extract_entities_request"
	KindCompareRequest           Kind = "compare_documents_request"
	KindCitationsRequest         Kind = "extract_citations_request"
	KindQueryResponse            Kind = "query_response"
	KindSummarizeResponse        Kind = "summarize_response"
	KindGenerateDocumentResponse Kind = "generate_document_response"
	KindIngestResponse           Kind = "ingest_response"
	KindEntitiesResponse         Kind = "extract_entities_response"
	KindCompareResponse          Kind = "compare_documents_response"
	KindCitationsResponse        Kind = "extract_citations_response"
	KindError                    Kind = "error"
)

// TranslatingPlaceholder is written into a message's translation while the request is outstanding.
const TranslatingPlaceholder = "Translating..."

// Message is a single entry in the session log.
type Message struct {
	Sender          Sender    `json:"sender"`
	Kind            Kind      `json:"kind"`
	Text            string    `json:"text"`
	SourceDocuments []string  `json:"source_documents,omitempty"`
	TranslatedText  string    `json:"translated_text,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// IsError reports whether the message carries a failure description.
func (m Message) IsError() bool { return m.Kind == KindError }

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	if m.SourceDocuments != nil {
		m.SourceDocuments = append([]string(nil), m.SourceDocuments...)
	}
	return m
}

// UserMessage builds a user-authored message of the given kind.
func UserMessage(kind Kind, text string) Message {
	return Message{Sender: SenderUser, Kind: kind, Text: text, CreatedAt: time.Now()}
}

// BotMessage builds a bot-authored message of the given kind.
func BotMessage(kind Kind, text string) Message {
	return Message{Sender: SenderBot, Kind: kind, Text: text, CreatedAt: time.Now()}
}

// ErrorMessage builds a bot-authored error message.
func ErrorMessage(text string) Message {
	return BotMessage(KindError, text)
}

// OperationKind is one of the independently serialized request kinds.
type OperationKind string

const (
	OpQuery            OperationKind = "query"
	OpSummarize        OperationKind = "summarize"
	OpGenerateDocument OperationKind = "generate-document"
	OpTranslate        OperationKind = "translate"
	OpIngest           OperationKind = "ingest"
	OpExtractEntities  OperationKind = "extract-entities"
	OpCompareDocuments OperationKind = "compare-documents"
	OpExtractCitations OperationKind = "extract-citations"
)

// OperationKinds lists every gated operation kind.
var OperationKinds = []OperationKind{
	OpQuery, OpSummarize, OpGenerateDocument, OpTranslate, OpIngest,
	OpExtractEntities, OpCompareDocuments, OpExtractCitations,
}

// DocumentType selects the template used by document generation.
type DocumentType string

const (
	DocumentNotice  DocumentType = "notice"
	DocumentSummons DocumentType = "summons"
)

// ParseDocumentType accepts "notice" or "summons" in any case.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(strings.ToLower(strings.TrimSpace(s))) {
	case DocumentNotice:
		return DocumentNotice, true
	case DocumentSummons:
		return DocumentSummons, true
	}
	return "", false
}

// Attachment is a local file selected for upload.
type Attachment struct {
	Name    string
	Content []byte
}

// IsZero reports whether no attachment is selected.
func (a *Attachment) IsZero() bool { return a == nil || (a.Name == "" && len(a.Content) == 0) }

// SummarizeSource names the document to summarize: a path known to the backend or an uploaded attachment.
// When both are set the attachment wins.
type SummarizeSource struct {
	Path       string
	Attachment *Attachment
}

// Label is the human-readable name of the document used in session messages.
func (s SummarizeSource) Label() string {
	if !s.Attachment.IsZero() {
		return s.Attachment.Name
	}
	return strings.TrimSpace(s.Path)
}

// Empty reports whether neither a path nor an attachment is present.
func (s SummarizeSource) Empty() bool {
	return s.Attachment.IsZero() && strings.TrimSpace(s.Path) == ""
}
