package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ===========================================================================
// HTTP DEMO SERVER
// ===========================================================================
//
// A small web demo around the classifier: a single-page form at / and a JSON
// API at POST /classify. The classifier is loaded once at startup and shared
// across request goroutines; it is read-only after loading, so no locking is
// needed.
//
// ===========================================================================

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Label      int     `json:"label"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RunServeCommand implements the serve subcommand.
func RunServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	modelPath := fs.String("model", "best_model.bin", "Path to a trained checkpoint")
	tokenizerPath := fs.String("tokenizer", "tokenizer.json", "HuggingFace tokenizer file")
	addr := fs.String("addr", ":8080", "Listen address")

	if err := fs.Parse(args); err != nil {
		return err
	}

	classifier, err := NewClassifier(*modelPath, *tokenizerPath)
	if err != nil {
		return err
	}

	srv := newDemoServer(classifier)
	log.Printf("sentiment demo listening on %s (model %s, %d parameters, %s)",
		*addr, *modelPath, classifier.Model().NumParameters(), DescribeCompute())

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return httpServer.ListenAndServe()
}

type demoServer struct {
	classifier *Classifier
	router     *mux.Router
}

func newDemoServer(classifier *Classifier) *demoServer {
	s := &demoServer{
		classifier: classifier,
		router:     mux.NewRouter(),
	}
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

func (s *demoServer) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	p, err := s.classifier.Classify(req.Text)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		Sentiment:  p.Sentiment,
		Confidence: p.Confidence,
		Label:      p.Label,
	})
}

func (s *demoServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *demoServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, demoPage)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writing response: %v", err)
	}
}

const demoPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Movie Review Sentiment</title>
<style>
  body { font-family: -apple-system, 'Segoe UI', sans-serif; background: #0d1117; color: #c9d1d9; display: flex; justify-content: center; padding-top: 60px; }
  .card { width: 560px; background: #161b22; border: 1px solid #30363d; border-radius: 10px; padding: 28px; }
  h1 { font-size: 22px; margin: 0 0 16px; }
  textarea { width: 100%; height: 140px; background: #0d1117; color: #c9d1d9; border: 1px solid #30363d; border-radius: 6px; padding: 10px; font-size: 14px; box-sizing: border-box; resize: vertical; }
  button { margin-top: 12px; padding: 8px 20px; background: #238636; color: #fff; border: none; border-radius: 6px; font-size: 14px; cursor: pointer; }
  button:disabled { opacity: 0.5; }
  #result { margin-top: 18px; font-size: 18px; min-height: 24px; }
  .positive { color: #3fb950; }
  .negative { color: #f85149; }
  .error { color: #f85149; font-size: 14px; }
</style>
</head>
<body>
<div class="card">
  <h1>Movie Review Sentiment</h1>
  <textarea id="review" placeholder="Paste a movie review..."></textarea>
  <button id="go" onclick="classify()">Classify</button>
  <div id="result"></div>
</div>
<script>
async function classify() {
  const btn = document.getElementById('go');
  const result = document.getElementById('result');
  btn.disabled = true;
  result.textContent = '...';
  try {
    const resp = await fetch('/classify', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({text: document.getElementById('review').value}),
    });
    const data = await resp.json();
    if (!resp.ok) {
      result.innerHTML = '<span class="error">' + data.error + '</span>';
    } else {
      const cls = data.label === 1 ? 'positive' : 'negative';
      result.innerHTML = '<span class="' + cls + '">' + data.sentiment + '</span> (' +
        data.confidence.toFixed(2) + ' confidence)';
    }
  } catch (e) {
    result.innerHTML = '<span class="error">' + e + '</span>';
  } finally {
    btn.disabled = false;
  }
}
</script>
</body>
</html>
`
