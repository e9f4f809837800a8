package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/store"
	"github.com/changyy/captcha-ocr-devkit/pkg/serving"
)

const ContentTypeJSON = "application/json"

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("POST /api/v1/stats/reset", s.handleStatsReset)
	mux.HandleFunc("GET /api/v1/handlers/info", s.handleHandlersInfo)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("POST /api/v1/ocr", s.handleOCR)
	mux.HandleFunc("POST /api/v1/generate", s.handleGenerate)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Health())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Stats())
}

func (s *Server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	s.pipeline.ResetStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": "statistics reset",
	})
}

func (s *Server) handleHandlersInfo(w http.ResponseWriter, r *http.Request) {
	info := make(map[string][]map[string]string)
	for _, role := range handler.Roles() {
		info[string(role)] = []map[string]string{}
	}
	for _, d := range s.registry.Descriptors() {
		info[string(d.Role)] = append(info[string(d.Role)], map[string]string{
			"identifier": d.Identifier,
			"version":    d.Version,
			"source":     d.Source,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   true,
		"handlers": info,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": true, "total": 0, "runs": []store.Run{}})
		return
	}

	filter := store.RunFilter{
		Kind:    store.RunKind(r.URL.Query().Get("kind")),
		Handler: r.URL.Query().Get("handler"),
	}
	runs, total, err := s.runs.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  false,
			"message": "list runs: " + err.Error(),
		})
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": true,
		"total":  total,
		"runs":   runs,
	})
}

// handleOCR accepts either a multipart form with an "image" file
// field or raw image bytes as the request body.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	image, contentType, err := readImage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		status := http.StatusBadRequest
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]any{
			"status":  false,
			"message": "read image: " + err.Error(),
		})
		return
	}

	resp := s.pipeline.Handle(serving.Request{Image: image, ContentType: contentType})
	writeJSON(w, resp.HTTPStatus, resp)
}

func readImage(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		// "image" is the documented field; "file" is accepted for
		// clients of the original API.
		file, header, err := r.FormFile("image")
		if err != nil {
			file, header, err = r.FormFile("file")
		}
		if err != nil {
			return nil, "", err
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return data, header.Header.Get("Content-Type"), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

type generateRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.pipeline.RecordGenerate(time.Since(start), false)
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status":  false,
				"message": "decode request: " + err.Error(),
			})
			return
		}
	}

	text := req.Text
	if text == "" {
		text = s.generator.RandomText()
	}

	data, err := s.generator.Render(text)
	if err != nil {
		s.pipeline.RecordGenerate(time.Since(start), false)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  false,
			"message": "render captcha: " + err.Error(),
		})
		return
	}

	elapsed := time.Since(start)
	s.pipeline.RecordGenerate(elapsed, true)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          true,
		"text":            text,
		"image":           base64.StdEncoding.EncodeToString(data),
		"content_type":    "image/png",
		"processing_time": elapsed.Seconds(),
	})
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>captcha-ocr-devkit</title></head>
<body>
<h1>captcha-ocr-devkit</h1>
<p>Handler-based CAPTCHA recognition service.</p>
<ul>
<li>GET /api/v1/health</li>
<li>GET /api/v1/stats</li>
<li>POST /api/v1/stats/reset</li>
<li>GET /api/v1/handlers/info</li>
<li>GET /api/v1/runs</li>
<li>POST /api/v1/ocr (multipart field "image" or raw body)</li>
<li>POST /api/v1/generate (JSON {"text": "abcd"})</li>
</ul>
<form action="/api/v1/ocr" method="post" enctype="multipart/form-data">
<input type="file" name="image">
<input type="submit" value="Recognize">
</form>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexPage))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
