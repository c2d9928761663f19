package domain

import "context"

// QueryResult is the backend's answer to a legal question.
type QueryResult struct {
	Question        string   `json:"question,omitempty"`
	Answer          string   `json:"answer"`
	SourceDocuments []string `json:"source_documents"`
}

// SummaryResult is the backend's summary of a document.
type SummaryResult struct {
	PDFPath string `json:"pdf_path,omitempty"`
	Summary string `json:"summary"`
}

// TranslationResult is the backend's translation of a text.
type TranslationResult struct {
	OriginalText   string `json:"original_text,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
	TranslatedText string `json:"translated_text"`
}

// EntitiesResult holds the parties, dates, courts and similar facts the backend found in a document.
// Entities is free-form: its keys depend on the extractors the backend has loaded.
type EntitiesResult struct {
	PDFPath  string         `json:"pdf_path"`
	Message  string         `json:"message"`
	Entities map[string]any `json:"entities"`
}

// ComparisonResult is the backend's account of how two documents differ.
type ComparisonResult struct {
	PDFPath1    string `json:"pdf_path1"`
	PDFPath2    string `json:"pdf_path2"`
	Message     string `json:"message"`
	Differences string `json:"differences"`
}

// CitationsResult lists the statutory and case-law citations found in a document.
type CitationsResult struct {
	PDFPath   string   `json:"pdf_path"`
	Citations []string `json:"citations"`
}

// GeneratedDocument is a rendered legal document returned by the backend.
type GeneratedDocument struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Backend is the remote RAG service reached over HTTP.
type Backend interface {
	Status(ctx context.Context) (string, error)
	ProcessQuery(ctx context.Context, question string) (*QueryResult, error)
	Summarize(ctx context.Context, source SummarizeSource) (*SummaryResult, error)
	GenerateDocument(ctx context.Context, prompt string, docType DocumentType) (*GeneratedDocument, error)
	Translate(ctx context.Context, text, targetLanguage string) (*TranslationResult, error)
	IngestDocuments(ctx context.Context, pdfPaths []string) (string, error)
	ExtractEntities(ctx context.Context, pdfPath string) (*EntitiesResult, error)
	CompareDocuments(ctx context.Context, pdfPath1, pdfPath2 string) (*ComparisonResult, error)
	ExtractCitations(ctx context.Context, pdfPath string) (*CitationsResult, error)
}

// DocumentSaver hands a generated document to the user and returns where it ended up.
type DocumentSaver interface {
	Save(ctx context.Context, doc *GeneratedDocument) (string, error)
}
