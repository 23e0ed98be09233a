// Package server exposes product recognition and Q&A over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"prodintel/internal/answer"
	"prodintel/internal/chunker"
	"prodintel/internal/index"
	"prodintel/internal/matcher"
	"prodintel/internal/ocr"
)

// Retriever is the slice of the index engine the server needs.
type Retriever interface {
	Retrieve(query, productID string, topK int) ([]chunker.Chunk, error)
	Rebuild() (*index.Stats, error)
	Count() int
}

// maxImageBytes caps uploaded image size (10 MB).
const maxImageBytes = 10 << 20

// Server wires the matcher, retrieval engine, OCR extractor, and answer
// generator behind an HTTP API.
type Server struct {
	matcher   *matcher.Matcher
	engine    Retriever
	extractor ocr.Extractor
	generator answer.Generator
	mux       *http.ServeMux
}

// New builds the server and its routes.
func New(m *matcher.Matcher, e Retriever, x ocr.Extractor, g answer.Generator) *Server {
	s := &Server{matcher: m, engine: e, extractor: x, generator: g, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /recognize", s.handleRecognize)
	s.mux.HandleFunc("GET /products", s.handleListProducts)
	s.mux.HandleFunc("GET /products/{id}", s.handleGetProduct)
	s.mux.HandleFunc("POST /products/{id}/answer", s.handleAnswer)
	s.mux.HandleFunc("POST /recognize-and-answer", s.handleCombined)
	s.mux.HandleFunc("POST /reindex", s.handleReindex)
}

// ServeHTTP implements http.Handler with request latency logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	slog.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start).Round(time.Millisecond))
}

// --- Response shapes ---

type recognitionResponse struct {
	Candidates    []matcher.Candidate `json:"candidates"`
	BestProductID string              `json:"best_product_id,omitempty"`
}

type answerResponse struct {
	Answer         string   `json:"answer"`
	ContextSources []string `json:"context_sources"`
}

type combinedResponse struct {
	Recognition recognitionResponse `json:"recognition"`
	Answer      *answerResponse     `json:"answer,omitempty"`
}

type healthResponse struct {
	Status       string `json:"status"`
	Products     int    `json:"products"`
	IndexVectors int    `json:"index_vectors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		Products:     s.matcher.CatalogSize(),
		IndexVectors: s.engine.Count(),
	})
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	text := s.extractor.ExtractText(r.Context(), image)
	resp := recognitionResponse{Candidates: []matcher.Candidate{}}
	if text != "" {
		resp.Candidates = candidatesOrEmpty(s.matcher.FindMatches(text, 0))
		if len(resp.Candidates) > 0 {
			resp.BestProductID = resp.Candidates[0].ProductID
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	type productJSON struct {
		ProductID string `json:"product_id"`
		Title     string `json:"title"`
		Model     string `json:"model"`
		Brand     string `json:"brand"`
	}
	out := make([]productJSON, 0)
	for _, e := range s.matcher.Entries() {
		out = append(out, productJSON{e.ProductID, e.Title, e.Model, e.Brand})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := s.matcher.Product(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("product %q not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"product_id": e.ProductID,
		"title":      e.Title,
		"model":      e.Model,
		"brand":      e.Brand,
	})
}

type answerRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.matcher.ValidateProductID(id) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("product %q not found", id)})
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	resp, status := s.answerFor(r.Context(), id, strings.TrimSpace(req.Question), req.TopK)
	writeJSON(w, status, resp)
}

func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	question := strings.TrimSpace(r.FormValue("question"))

	out := combinedResponse{Recognition: recognitionResponse{Candidates: []matcher.Candidate{}}}

	text := s.extractor.ExtractText(r.Context(), image)
	if text != "" {
		out.Recognition.Candidates = candidatesOrEmpty(s.matcher.FindMatches(text, 0))
		if len(out.Recognition.Candidates) > 0 {
			out.Recognition.BestProductID = out.Recognition.Candidates[0].ProductID
		}
	}

	// Answer-stage failures degrade into the body; recognition still succeeds.
	switch {
	case question == "":
	case out.Recognition.BestProductID == "":
		out.Answer = &answerResponse{
			Answer:         "Cannot answer question: product not recognized from image.",
			ContextSources: []string{},
		}
	default:
		resp, _ := s.answerFor(r.Context(), out.Recognition.BestProductID, question, 3)
		switch v := resp.(type) {
		case answerResponse:
			out.Answer = &v
		case errorResponse:
			out.Answer = &answerResponse{
				Answer:         fmt.Sprintf("Failed to generate answer: %s", v.Error),
				ContextSources: []string{},
			}
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Rebuild()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"documents": stats.Documents,
		"chunks":    stats.Chunks,
	})
}

// answerFor retrieves context for a validated product and generates the
// answer, mapping generator error kinds onto HTTP statuses.
func (s *Server) answerFor(ctx context.Context, productID, question string, topK int) (any, int) {
	chunks, err := s.engine.Retrieve(question, productID, topK)
	if err != nil {
		slog.Error("retrieval failed", "product_id", productID, "err", err)
		return errorResponse{Error: "retrieval failed"}, http.StatusInternalServerError
	}
	if len(chunks) == 0 {
		return answerResponse{
			Answer:         "No relevant information found in the product documentation.",
			ContextSources: []string{},
		}, http.StatusOK
	}

	contexts := make([]string, len(chunks))
	seen := make(map[string]bool)
	var sources []string
	for i, c := range chunks {
		contexts[i] = c.Text
		if !seen[c.Source] {
			seen[c.Source] = true
			sources = append(sources, c.Source)
		}
	}

	text, err := s.generator.Generate(ctx, question, contexts)
	if err != nil {
		switch {
		case errors.Is(err, answer.ErrNotConfigured):
			return errorResponse{Error: err.Error()}, http.StatusServiceUnavailable
		case errors.Is(err, answer.ErrRateLimited):
			return errorResponse{Error: err.Error()}, http.StatusTooManyRequests
		default:
			slog.Error("answer generation failed", "err", err)
			return errorResponse{Error: "answer generation failed"}, http.StatusBadGateway
		}
	}

	return answerResponse{Answer: text, ContextSources: sources}, http.StatusOK
}

// --- Helpers ---

func readImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form")
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("missing image field")
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("invalid file type %q, upload an image", ct)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func candidatesOrEmpty(cs []matcher.Candidate) []matcher.Candidate {
	if cs == nil {
		return []matcher.Candidate{}
	}
	return cs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}
