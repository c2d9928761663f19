package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"legalchat/internal/domain"
	"legalchat/internal/languages"
	"legalchat/internal/session"
)

// Outcome describes how a dispatched call ended.
// Index is the position of the message the call appended or patched, or -1 if it touched none.
type Outcome struct {
	Kind    domain.OperationKind
	Index   int
	Message domain.Message
	Err     error
}

// Failed reports whether the call ended in an error message.
func (o Outcome) Failed() bool { return o.Err != nil }

// Call is an accepted request whose network round trip has not run yet.
type Call struct {
	d    *Dispatcher
	kind domain.OperationKind
	exec func(ctx context.Context) Outcome
}

func (c *Call) Kind() domain.OperationKind { return c.kind }

// Run performs the round trip and records the result in the session log.
// It always returns the kind to idle, and failures become error messages rather than returned errors.
func (c *Call) Run(ctx context.Context) (out Outcome) {
	defer c.d.pending.Release(c.kind)
	defer func() {
		if r := recover(); r != nil {
			c.d.log.Error("dispatch panicked", zap.String("kind", string(c.kind)), zap.Any("panic", r))
			out = c.d.fail(context.Background(), c.kind, "request failed", fmt.Errorf("internal error: %v", r))
		}
	}()
	if c.d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.d.timeout)
		defer cancel()
	}
	start := time.Now()
	out = c.exec(ctx)
	c.d.log.Info("dispatch finished",
		zap.String("kind", string(c.kind)),
		zap.Bool("failed", out.Failed()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out
}

// Options tunes a Dispatcher.
type Options struct {
	// Timeout bounds each round trip so a kind cannot stay in flight forever. Zero disables it.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Dispatcher turns user actions into backend requests and their results into session messages.
// Each operation kind is serialized against itself through the injected Pending table.
type Dispatcher struct {
	backend domain.Backend
	store   *session.Store
	pending *Pending
	saver   domain.DocumentSaver
	timeout time.Duration
	log     *zap.Logger
}

func NewDispatcher(backend domain.Backend, store *session.Store, pending *Pending, saver domain.DocumentSaver, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if pending == nil {
		pending = NewPending()
	}
	return &Dispatcher{
		backend: backend,
		store:   store,
		pending: pending,
		saver:   saver,
		timeout: opts.Timeout,
		log:     log,
	}
}

func (d *Dispatcher) Pending() *Pending { return d.pending }

func (d *Dispatcher) InFlight(kind domain.OperationKind) bool { return d.pending.InFlight(kind) }

// BeginQuery accepts the drafted question, logs it and clears the input.
func (d *Dispatcher) BeginQuery(ctx context.Context, draft *session.Draft) (*Call, bool) {
	question := strings.TrimSpace(draft.Question)
	if question == "" || !d.pending.TryAcquire(domain.OpQuery) {
		return nil, false
	}
	d.append(ctx, domain.UserMessage(domain.KindQuery, question))
	draft.Question = ""
	return &Call{d: d, kind: domain.OpQuery, exec: func(ctx context.Context) Outcome {
		res, err := d.backend.ProcessQuery(ctx, question)
		if err != nil {
			return d.fail(ctx, domain.OpQuery, "failed to get an answer", err)
		}
		msg := domain.BotMessage(domain.KindQueryResponse, res.Answer)
		msg.SourceDocuments = res.SourceDocuments
		return d.succeed(ctx, domain.OpQuery, msg)
	}}, true
}

// BeginSummarize accepts the drafted document and clears the selection.
func (d *Dispatcher) BeginSummarize(ctx context.Context, draft *session.Draft) (*Call, bool) {
	return d.beginSummarize(ctx, draft.SummarizeSource(), draft.ClearDocument)
}

func (d *Dispatcher) beginSummarize(ctx context.Context, src domain.SummarizeSource, reset func()) (*Call, bool) {
	if src.Empty() || !d.pending.TryAcquire(domain.OpSummarize) {
		return nil, false
	}
	if !src.Attachment.IsZero() {
		src.Path = ""
	} else {
		src.Path = strings.TrimSpace(src.Path)
		src.Attachment = nil
	}
	label := src.Label()
	d.append(ctx, domain.UserMessage(domain.KindSummarizeRequest, "Summarize: "+label))
	if reset != nil {
		reset()
	}
	return &Call{d: d, kind: domain.OpSummarize, exec: func(ctx context.Context) Outcome {
		res, err := d.backend.Summarize(ctx, src)
		if err != nil {
			return d.fail(ctx, domain.OpSummarize, "failed to summarize "+label, err)
		}
		return d.succeed(ctx, domain.OpSummarize, domain.BotMessage(domain.KindSummarizeResponse, res.Summary))
	}}, true
}

// BeginGenerateDocument accepts the drafted prompt and document type and clears the prompt.
func (d *Dispatcher) BeginGenerateDocument(ctx context.Context, draft *session.Draft) (*Call, bool) {
	prompt := strings.TrimSpace(draft.Prompt)
	docType, ok := domain.ParseDocumentType(string(draft.DocumentType))
	if prompt == "" || !ok || !d.pending.TryAcquire(domain.OpGenerateDocument) {
		return nil, false
	}
	d.append(ctx, domain.UserMessage(domain.KindGenerateDocumentRequest, fmt.Sprintf("Generate %s: %s", docType, prompt)))
	draft.Prompt = ""
	return &Call{d: d, kind: domain.OpGenerateDocument, exec: func(ctx context.Context) Outcome {
		doc, err := d.backend.GenerateDocument(ctx, prompt, docType)
		if err != nil {
			return d.fail(ctx, domain.OpGenerateDocument, fmt.Sprintf("failed to generate %s", docType), err)
		}
		if d.saver == nil {
			return d.fail(ctx, domain.OpGenerateDocument, fmt.Sprintf("failed to save %s", docType), errors.New("no document saver configured"))
		}
		path, err := d.saver.Save(ctx, doc)
		if err != nil {
			return d.fail(ctx, domain.OpGenerateDocument, fmt.Sprintf("failed to save %s", docType), err)
		}
		text := fmt.Sprintf("Generated %s saved to %s", docType, path)
		return d.succeed(ctx, domain.OpGenerateDocument, domain.BotMessage(domain.KindGenerateDocumentResponse, text))
	}}, true
}

// BeginTranslate marks the message at index as translating. The result later replaces the placeholder
// in place; no message is appended. If the log is cleared meanwhile the result is dropped.
func (d *Dispatcher) BeginTranslate(ctx context.Context, index int, targetLanguage string) (*Call, bool) {
	lang := strings.TrimSpace(targetLanguage)
	if canonical, ok := languages.Lookup(lang); ok {
		lang = canonical
	}
	if lang == "" {
		return nil, false
	}
	gen := d.store.Generation()
	msg, ok := d.store.At(index)
	if !ok || strings.TrimSpace(msg.Text) == "" {
		return nil, false
	}
	if !d.pending.TryAcquire(domain.OpTranslate) {
		return nil, false
	}
	if _, ok := d.patchTranslation(ctx, gen, index, domain.TranslatingPlaceholder); !ok {
		d.pending.Release(domain.OpTranslate)
		return nil, false
	}
	return &Call{d: d, kind: domain.OpTranslate, exec: func(ctx context.Context) Outcome {
		res, err := d.backend.Translate(ctx, msg.Text, lang)
		var text string
		if err != nil {
			text = fmt.Sprintf("Error: translation to %s failed: %s", lang, describe(err))
			d.log.Warn("translate failed", zap.Int("index", index), zap.String("language", lang), zap.Error(err))
		} else {
			text = res.TranslatedText
		}
		updated, ok := d.patchTranslation(ctx, gen, index, text)
		if !ok {
			return Outcome{Kind: domain.OpTranslate, Index: -1, Err: err}
		}
		return Outcome{Kind: domain.OpTranslate, Index: index, Message: updated, Err: err}
	}}, true
}

// BeginIngest asks the backend to index the given documents. Only the backend's reply is logged.
func (d *Dispatcher) BeginIngest(ctx context.Context, pdfPaths []string) (*Call, bool) {
	paths := make([]string, 0, len(pdfPaths))
	for _, p := range pdfPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 || !d.pending.TryAcquire(domain.OpIngest) {
		return nil, false
	}
	return &Call{d: d, kind: domain.OpIngest, exec: func(ctx context.Context) Outcome {
		message, err := d.backend.IngestDocuments(ctx, paths)
		if err != nil {
			return d.fail(ctx, domain.OpIngest, "failed to ingest documents", err)
		}
		return d.succeed(ctx, domain.OpIngest, domain.BotMessage(domain.KindIngestResponse, message))
	}}, true
}

// BeginExtractEntities asks for the named entities of a document the backend can read.
func (d *Dispatcher) BeginExtractEntities(ctx context.Context, pdfPath string) (*Call, bool) {
	path := strings.TrimSpace(pdfPath)
	if path == "" || !d.pending.TryAcquire(domain.OpExtractEntities) {
		return nil, false
	}
	d.append(ctx, domain.UserMessage(domain.KindEntitiesRequest, "Extract entities: "+path))
	return &Call{d: d, kind: domain.OpExtractEntities, exec: func(ctx context.Context) Outcome {
		res, err := d.backend.ExtractEntities(ctx, path)
		if err != nil {
			return d.fail(ctx, domain.OpExtractEntities, "failed to extract entities from "+path, err)
		}
		return d.succeed(ctx, domain.OpExtractEntities, domain.BotMessage(domain.KindEntitiesResponse, entitiesText(path, res)))
	}}, true
}

// BeginCompareDocuments asks how two documents the backend can read differ.
func (d *Dispatcher) BeginCompareDocuments(ctx context.Context, pdfPath1, pdfPath2 string) (*Call, bool) {
	a, b := strings.TrimSpace(pdfPath1), strings.TrimSpace(pdfPath2)
	if a == "" || b == "" || !d.pending.TryAcquire(domain.OpCompareDocuments) {
		return nil, false
	}
	d.append(ctx, domain.UserMessage(domain.KindCompareRequest, fmt.Sprintf("Compare: %s vs %s", a, b)))
	return &Call{d: d, kind: domain.OpCompareDocuments, exec: func(ctx context.Context) Outcome {
		res, err := d.backend.CompareDocuments(ctx, a, b)
		if err != nil {
			return d.fail(ctx, domain.OpCompareDocuments, fmt.Sprintf("failed to compare %s and %s", a, b), err)
		}
		text := res.Differences
		if strings.TrimSpace(text) == "" {
			text = res.Message
		}
		return d.succeed(ctx, domain.OpCompareDocuments, domain.BotMessage(domain.KindCompareResponse, text))
	}}, true
}

// BeginExtractCitations asks for the citations in a document the backend can read.
func (d *Dispatcher) BeginExtractCitations(ctx context.Context, pdfPath string) (*Call, bool) {
	path := strings.TrimSpace(pdfPath)
	if path == "" || !d.pending.TryAcquire(domain.OpExtractCitations) {
		return nil, false
	}
	d.append(ctx, domain.UserMessage(domain.KindCitationsRequest, "Extract citations: "+path))
	return &Call{d: d, kind: domain.OpExtractCitations, exec: func(ctx context.Context) Outcome {
		res, err := d.backend.ExtractCitations(ctx, path)
		if err != nil {
			return d.fail(ctx, domain.OpExtractCitations, "failed to extract citations from "+path, err)
		}
		return d.succeed(ctx, domain.OpExtractCitations, domain.BotMessage(domain.KindCitationsResponse, citationsText(path, res.Citations)))
	}}, true
}

// Query runs a question to completion. It reports false if the question was rejected.
func (d *Dispatcher) Query(ctx context.Context, question string) (Outcome, bool) {
	c, ok := d.BeginQuery(ctx, &session.Draft{Question: question})
	return finish(ctx, c, ok)
}

// Summarize runs a summary request to completion. The attachment wins when both sources are set.
func (d *Dispatcher) Summarize(ctx context.Context, src domain.SummarizeSource) (Outcome, bool) {
	c, ok := d.beginSummarize(ctx, src, nil)
	return finish(ctx, c, ok)
}

// GenerateDocument runs a document generation request to completion.
func (d *Dispatcher) GenerateDocument(ctx context.Context, prompt string, docType domain.DocumentType) (Outcome, bool) {
	c, ok := d.BeginGenerateDocument(ctx, &session.Draft{Prompt: prompt, DocumentType: docType})
	return finish(ctx, c, ok)
}

// Translate runs a translation of the message at index to completion.
func (d *Dispatcher) Translate(ctx context.Context, index int, targetLanguage string) (Outcome, bool) {
	c, ok := d.BeginTranslate(ctx, index, targetLanguage)
	return finish(ctx, c, ok)
}

// Ingest runs an ingest request to completion.
func (d *Dispatcher) Ingest(ctx context.Context, pdfPaths []string) (Outcome, bool) {
	c, ok := d.BeginIngest(ctx, pdfPaths)
	return finish(ctx, c, ok)
}

// ExtractEntities runs an entity extraction to completion.
func (d *Dispatcher) ExtractEntities(ctx context.Context, pdfPath string) (Outcome, bool) {
	c, ok := d.BeginExtractEntities(ctx, pdfPath)
	return finish(ctx, c, ok)
}

// CompareDocuments runs a document comparison to completion.
func (d *Dispatcher) CompareDocuments(ctx context.Context, pdfPath1, pdfPath2 string) (Outcome, bool) {
	c, ok := d.BeginCompareDocuments(ctx, pdfPath1, pdfPath2)
	return finish(ctx, c, ok)
}

// ExtractCitations runs a citation extraction to completion.
func (d *Dispatcher) ExtractCitations(ctx context.Context, pdfPath string) (Outcome, bool) {
	c, ok := d.BeginExtractCitations(ctx, pdfPath)
	return finish(ctx, c, ok)
}

// Status checks backend liveness. It is neither gated nor recorded in the session.
func (d *Dispatcher) Status(ctx context.Context) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.backend.Status(ctx)
}

func finish(ctx context.Context, c *Call, ok bool) (Outcome, bool) {
	if !ok {
		return Outcome{Index: -1}, false
	}
	return c.Run(ctx), true
}

func (d *Dispatcher) succeed(ctx context.Context, kind domain.OperationKind, msg domain.Message) Outcome {
	idx := d.append(ctx, msg)
	return Outcome{Kind: kind, Index: idx, Message: msg}
}

func (d *Dispatcher) fail(ctx context.Context, kind domain.OperationKind, what string, err error) Outcome {
	d.log.Warn("dispatch failed", zap.String("kind", string(kind)), zap.Error(err))
	msg := domain.ErrorMessage(fmt.Sprintf("Error: %s: %s", what, describe(err)))
	idx := d.append(ctx, msg)
	return Outcome{Kind: kind, Index: idx, Message: msg, Err: err}
}

// append records msg even when persisting it fails, so the caller still sees it on screen.
func (d *Dispatcher) append(ctx context.Context, msg domain.Message) int {
	idx, err := d.store.Append(persistContext(ctx), msg)
	if err != nil {
		d.log.Error("append not persisted", zap.String("kind", string(msg.Kind)), zap.Error(err))
	}
	return idx
}

// patchTranslation reports false when the message is no longer the one the translation was asked for.
func (d *Dispatcher) patchTranslation(ctx context.Context, gen uint64, index int, text string) (domain.Message, bool) {
	err := d.store.UpdateAt(persistContext(ctx), gen, index, session.MessagePatch{TranslatedText: &text})
	switch {
	case errors.Is(err, session.ErrStale), errors.Is(err, session.ErrIndexOutOfRange):
		d.log.Info("translation dropped", zap.Int("index", index), zap.Error(err))
		return domain.Message{}, false
	case err != nil:
		d.log.Error("translation patch not persisted", zap.Int("index", index), zap.Error(err))
	}
	msg, _ := d.store.At(index)
	return msg, true
}

// persistContext keeps writes to the history alive after a request deadline has passed.
func persistContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func entitiesText(path string, res *domain.EntitiesResult) string {
	keys := make([]string, 0, len(res.Entities))
	for k := range res.Entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := entityValue(res.Entities[k])
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", strings.ReplaceAll(k, "_", " "), v)
	}
	if b.Len() == 0 {
		if res.Message != "" {
			return res.Message
		}
		return "No entities found in " + path
	}
	return strings.TrimRight(b.String(), "\n")
}

func entityValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := entityValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func citationsText(path string, citations []string) string {
	if len(citations) == 0 {
		return "No citations found in " + path
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d citation(s) in %s:", len(citations), path)
	for _, c := range citations {
		b.WriteString("\n- " + c)
	}
	return b.String()
}

func describe(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	}
	return err.Error()
}
