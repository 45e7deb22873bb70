package httpapi

import (
	"net/http"

	"github.com/MasterCoderKay/patent-ai/internal/core/patent"
)

// RootMessage は GET / が返す文言
const RootMessage = "PatentAI Backend Running!"

type polishRequest struct {
	Claim string `json:"claim"`
}

type analyzeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type descriptionRequest struct {
	Description string `json:"description"`
}

type claimAnalysisRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Detailed bool   `json:"detailed"`
}

type claimAnalysisResponse struct {
	Status          string   `json:"status"`
	AnalysisSummary string   `json:"analysis_summary"`
	TechnicalTerms  []string `json:"technical_terms"`
	Model           string   `json:"model"`
}

type healthResponse struct {
	Status             string `json:"status"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
	UpstreamConfigured bool   `json:"upstream_configured"`
	Provider           string `json:"provider"`
}

// taskRoute は1つのタスクを公開するエンドポイント
type taskRoute struct {
	pattern string
	task    patent.Task
	field   string
	decode  func(w http.ResponseWriter, r *http.Request) (patent.Input, *appError)
}

func taskRoutes() []taskRoute {
	return []taskRoute{
		{
			pattern: "POST /polish-claim",
			task:    patent.TaskPolish,
			field:   "result",
			decode: func(w http.ResponseWriter, r *http.Request) (patent.Input, *appError) {
				var req polishRequest
				if appErr := decodeJSON(w, r, &req); appErr != nil {
					return patent.Input{}, appErr
				}
				return patent.Input{Text: req.Claim}, nil
			},
		},
		{
			pattern: "POST /analyze",
			task:    patent.TaskAnalyze,
			field:   "analysis",
			decode: func(w http.ResponseWriter, r *http.Request) (patent.Input, *appError) {
				var req analyzeRequest
				if appErr := decodeJSON(w, r, &req); appErr != nil {
					return patent.Input{}, appErr
				}
				return patent.Input{Title: req.Title, Text: req.Description}, nil
			},
		},
		{
			pattern: "POST /score",
			task:    patent.TaskScore,
			field:   "novelty_score",
			decode:  decodeDescription,
		},
		{
			pattern: "POST /keywords",
			task:    patent.TaskKeywords,
			field:   "keywords",
			decode:  decodeDescription,
		},
		{
			pattern: "POST /market-pitch",
			task:    patent.TaskPitch,
			field:   "investor_pitch",
			decode:  decodeDescription,
		},
	}
}

func decodeDescription(w http.ResponseWriter, r *http.Request) (patent.Input, *appError) {
	var req descriptionRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		return patent.Input{}, appErr
	}
	return patent.Input{Text: req.Description}, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	for _, route := range taskRoutes() {
		mux.Handle(route.pattern, s.handle(s.taskHandler(route)))
	}
	mux.Handle("POST /api/patents/analyze", s.handle(s.claimAnalysis))
	mux.Handle("GET /history", s.handle(s.listHistory))
	mux.Handle("GET /health", s.handle(s.health))
	mux.Handle("GET /{$}", s.handle(s.root))
}

func (s *Server) handle(fn func(http.ResponseWriter, *http.Request) *appError) http.Handler {
	return appHandler{fn: fn, logger: s.logger}
}

// taskHandler は {status, <field>, model} を返すタスク用ハンドラを作る
func (s *Server) taskHandler(route taskRoute) func(http.ResponseWriter, *http.Request) *appError {
	return func(w http.ResponseWriter, r *http.Request) *appError {
		in, appErr := route.decode(w, r)
		if appErr != nil {
			return appErr
		}

		out, err := s.runner.Run(r.Context(), route.task, in)
		if err != nil {
			return toAppError(r, err)
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":    statusSuccess,
			route.field: out.Text,
			"model":     out.Model,
		})
		return nil
	}
}

func (s *Server) claimAnalysis(w http.ResponseWriter, r *http.Request) *appError {
	var req claimAnalysisRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		return appErr
	}

	out, err := s.runner.Run(r.Context(), patent.TaskClaim, patent.Input{
		Text:     req.Text,
		Language: req.Language,
		Detailed: req.Detailed,
	})
	if err != nil {
		return toAppError(r, err)
	}

	terms := out.TechnicalTerms
	if terms == nil {
		terms = []string{}
	}

	writeJSON(w, http.StatusOK, claimAnalysisResponse{
		Status:          statusSuccess,
		AnalysisSummary: out.Text,
		TechnicalTerms:  terms,
		Model:           out.Model,
	})
	return nil
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) *appError {
	entries, err := s.runner.History(r.Context())
	if err != nil {
		return toAppError(r, err)
	}

	writeJSON(w, http.StatusOK, entries)
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) *appError {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "ok",
		UptimeSeconds:      int64(s.now().Sub(s.startedAt).Seconds()),
		UpstreamConfigured: s.upstreamConfigured,
		Provider:           s.provider,
	})
	return nil
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) *appError {
	writeJSON(w, http.StatusOK, map[string]string{"message": RootMessage})
	return nil
}
