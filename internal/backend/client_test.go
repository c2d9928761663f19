package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalchat/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, MaxRetries: retries, Timeout: 5 * time.Second})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"message":"Vakil Buddy Legal Chatbot AI Engine is running!"}`))
	}, 0)

	msg, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Vakil Buddy Legal Chatbot AI Engine is running!", msg)
}

func TestProcessQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/process-query", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "What is the Code of Civil Procedure, 1908 about?", in["question"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"question":         in["question"],
			"answer":           "It consolidates the law of civil procedure.",
			"source_documents": []string{"Section 1", "Preamble"},
		})
	}, 0)

	res, err := c.ProcessQuery(context.Background(), "What is the Code of Civil Procedure, 1908 about?")
	require.NoError(t, err)
	assert.Equal(t, "It consolidates the law of civil procedure.", res.Answer)
	assert.Equal(t, []string{"Section 1", "Preamble"}, res.SourceDocuments)
}

func TestSummarizeWithPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/summarize-document", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "data/doc.pdf", r.URL.Query().Get("pdf_path"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "data/doc.pdf", in["pdf_path"])
		_, _ = w.Write([]byte(`{"pdf_path":"data/doc.pdf","summary":"short"}`))
	}, 0)

	res, err := c.Summarize(context.Background(), domain.SummarizeSource{Path: "data/doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "short", res.Summary)
	assert.Equal(t, "data/doc.pdf", res.PDFPath)
}

func TestSummarizePrefersAttachment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("pdf_path"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "upload.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))
		_, _ = w.Write([]byte(`{"summary":"from upload"}`))
	}, 0)

	res, err := c.Summarize(context.Background(), domain.SummarizeSource{
		Path:       "data/doc.pdf",
		Attachment: &domain.Attachment{Name: "upload.pdf", Content: []byte("%PDF-1.4")},
	})
	require.NoError(t, err)
	assert.Equal(t, "from upload", res.Summary)
}

func TestSummarizeWithoutDocument(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { atomic.AddInt32(&calls, 1) }, 0)
	_, err := c.Summarize(context.Background(), domain.SummarizeSource{Path: "  "})
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGenerateDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "summons", in["document_type"])
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=summons_generated.pdf")
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}, 0)

	doc, err := c.GenerateDocument(context.Background(), "tenant eviction", domain.DocumentSummons)
	require.NoError(t, err)
	assert.Equal(t, "summons_generated.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "%PDF-1.4 body", string(doc.Content))
}

func TestGenerateDocumentFallbackName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF"))
	}, 0)
	doc, err := c.GenerateDocument(context.Background(), "p", domain.DocumentNotice)
	require.NoError(t, err)
	assert.Equal(t, "notice_generated.pdf", doc.Filename)
}

func TestTranslate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Spanish", in["target_language"])
		_, _ = w.Write([]byte(`{"original_text":"hello","target_language":"Spanish","translated_text":"hola"}`))
	}, 0)
	res, err := c.Translate(context.Background(), "hello", "Spanish")
	require.NoError(t, err)
	assert.Equal(t, "hola", res.TranslatedText)
}

func TestIngestDocuments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ingest-documents", r.URL.Path)
		var in map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, []string{"a.pdf", "b.pdf"}, in["pdf_paths"])
		_, _ = w.Write([]byte(`{"message":"Successfully ingested 2 documents and updated vector store."}`))
	}, 0)
	msg, err := c.IngestDocuments(context.Background(), []string{"a.pdf", "b.pdf"})
	require.NoError(t, err)
	assert.Contains(t, msg, "ingested 2 documents")
}

func TestStatusErrorCarriesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Unsupported target language: Klingon"}`))
	}, 3)

	_, err := c.Translate(context.Background(), "hi", "Klingon")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "Unsupported target language: Klingon", se.Detail)
	assert.Contains(t, err.Error(), "400")
}

func TestRetriesOnServiceUnavailable(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":"up"}`))
	}, 2)

	msg, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "up", msg)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, 1)

	_, err := c.Status(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, MaxRetries: 1})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	_, err = c.ProcessQuery(context.Background(), "q")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "/process-query")
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 5*time.Second, retryDelay(10))
}

func TestExtractEntities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract-entities", r.URL.Path)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "data/judgment.pdf", in["pdf_path"])
		_, _ = w.Write([]byte(`{"pdf_path":"data/judgment.pdf","extracted_entities":{"message":"Extracted entities.",` +
			`"entities":{"case_name":"State v. Sharma","parties":["State","R. Sharma"]}}}`))
	}, 0)

	res, err := c.ExtractEntities(context.Background(), "data/judgment.pdf")
	require.NoError(t, err)
	assert.Equal(t, "data/judgment.pdf", res.PDFPath)
	assert.Equal(t, "Extracted entities.", res.Message)
	assert.Equal(t, "State v. Sharma", res.Entities["case_name"])
	assert.Equal(t, []any{"State", "R. Sharma"}, res.Entities["parties"])
}

func TestCompareDocuments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compare-documents", r.URL.Path)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "v1.pdf", in["pdf_path1"])
		assert.Equal(t, "v2.pdf", in["pdf_path2"])
		_, _ = w.Write([]byte(`{"pdf_path1":"v1.pdf","pdf_path2":"v2.pdf","comparison_result":` +
			`{"message":"Document comparison completed.","differences":"Clause 4 now caps liability."}}`))
	}, 0)

	res, err := c.CompareDocuments(context.Background(), "v1.pdf", "v2.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Document comparison completed.", res.Message)
	assert.Equal(t, "Clause 4 now caps liability.", res.Differences)
}

func TestCompareDocumentsEmptyDifferences(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"comparison_result":{"message":"Error during document comparison: quota","differences":{}}}`))
	}, 0)

	res, err := c.CompareDocuments(context.Background(), "a.pdf", "b.pdf")
	require.NoError(t, err)
	assert.Empty(t, res.Differences)
	assert.Contains(t, res.Message, "quota")
}

func TestExtractCitations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract-citations", r.URL.Path)
		_, _ = w.Write([]byte(`{"pdf_path":"j.pdf","citations":["Section 302 of the Indian Penal Code","(2023) 1 SCC 123"]}`))
	}, 0)

	res, err := c.ExtractCitations(context.Background(), "j.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"Section 302 of the Indian Penal Code", "(2023) 1 SCC 123"}, res.Citations)
}

func TestIngestNotRepeatedOnGatewayErrors(t *testing.T) {
	for _, code := range []int{http.StatusBadGateway, http.StatusGatewayTimeout} {
		var calls int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(code)
		}, 3)

		_, err := c.IngestDocuments(context.Background(), []string{"a.pdf"})
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, code, se.Code)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d", code)
	}
}

func TestGenerateDocumentRepeatedWhenRejected(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}, 2)

	doc, err := c.GenerateDocument(context.Background(), "unpaid rent", domain.DocumentNotice)
	require.NoError(t, err)
	assert.Equal(t, "notice_generated.pdf", doc.Filename)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateDocumentTransportFailureNotRepeated(t *testing.T) {
	var calls int32
	c, err := NewClient(Config{MaxRetries: 3, HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection reset by peer")
	})}})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	_, err = c.GenerateDocument(context.Background(), "p", domain.DocumentSummons)
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
