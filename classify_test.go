package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	model, err := NewSentimentEncoder(tinyTestConfig(), 8)
	require.NoError(t, err)
	classifier, err := NewClassifierWith(model, newStubEncoder(tinyTestConfig().SeqLen))
	require.NoError(t, err)
	return classifier
}

func TestClassifyReturnsValidPrediction(t *testing.T) {
	c := testClassifier(t)

	p, err := c.Classify("a perfectly ordinary movie review")
	require.NoError(t, err)

	assert.Contains(t, []int{ClassNegative, ClassPositive}, p.Label)
	assert.Equal(t, SentimentName(p.Label), p.Sentiment)
	assert.GreaterOrEqual(t, p.Confidence, 0.5, "two classes: the argmax has at least half the mass")
	assert.LessOrEqual(t, p.Confidence, 1.0)
}

func TestClassifyEmptyText(t *testing.T) {
	c := testClassifier(t)

	_, err := c.Classify("")
	require.Error(t, err)
	_, err = c.Classify("   \n\t ")
	require.Error(t, err)
}

func TestClassifyDeterministic(t *testing.T) {
	c := testClassifier(t)

	a, err := c.Classify("the same review twice")
	require.NoError(t, err)
	b, err := c.Classify("the same review twice")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestClassifyBatch(t *testing.T) {
	c := testClassifier(t)

	preds, err := c.ClassifyBatch([]string{"first review", "second review"})
	require.NoError(t, err)
	assert.Len(t, preds, 2)

	_, err = c.ClassifyBatch([]string{"fine", ""})
	require.Error(t, err, "one bad text aborts the batch")
}

func TestClassifierLoadFailures(t *testing.T) {
	dir := t.TempDir()
	_, err := NewClassifier(filepath.Join(dir, "missing.bin"), filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestClassifierRejectsPadIDMismatch(t *testing.T) {
	config := tinyTestConfig()
	config.PadID = 1 // trained against a tokenizer whose pad slot is 1
	model, err := NewSentimentEncoder(config, 2)
	require.NoError(t, err)

	_, err = NewClassifierWith(model, newStubEncoder(config.SeqLen))
	require.Error(t, err, "a tokenizer with a different pad ID is the wrong tokenizer")
	assert.Contains(t, err.Error(), "pad ID")
}

func TestSentimentName(t *testing.T) {
	assert.Equal(t, "Positive", SentimentName(ClassPositive))
	assert.Equal(t, "Negative", SentimentName(ClassNegative))
}

func TestFormatPrediction(t *testing.T) {
	p := Prediction{Label: ClassPositive, Sentiment: "Positive", Confidence: 0.9812}
	assert.Equal(t, "Positive (0.98 confidence)", FormatPrediction(p))
}

func TestDemoServerClassify(t *testing.T) {
	srv := newDemoServer(testClassifier(t))

	body, err := json.Marshal(classifyRequest{Text: "what a wonderful film"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/classify", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp classifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, []string{"Positive", "Negative"}, resp.Sentiment)
	assert.Contains(t, []int{ClassNegative, ClassPositive}, resp.Label)
	assert.Greater(t, resp.Confidence, 0.0)
}

func TestDemoServerRejectsBadRequests(t *testing.T) {
	srv := newDemoServer(testClassifier(t))

	req := httptest.NewRequest(http.MethodPost, "/classify", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, _ := json.Marshal(classifyRequest{Text: "  "})
	req = httptest.NewRequest(http.MethodPost, "/classify", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/classify", nil)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDemoServerHealthAndIndex(t *testing.T) {
	srv := newDemoServer(testClassifier(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Movie Review Sentiment")
}
