// Package serving composes a Preprocess+OCR handler pair and one
// loaded model into a concurrent inference pipeline with health
// reporting and usage statistics.
package serving

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/logger"
)

// ErrNotReady is returned by Start when the pipeline cannot reach the
// Ready state.
var ErrNotReady = errors.New("serving pipeline not ready")

// State is the lifecycle state of a serving pipeline.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "healthy"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Config wires one serving pipeline. The handler instances come from
// the registry; the pipeline owns them for its process lifetime.
type Config struct {
	ModelPath  string
	Preprocess handler.Preprocess
	OCR        handler.OCR
	// Version is the runtime version echoed as core_version.
	Version string
}

// Pipeline answers inference requests with one loaded model and one
// handler pair. Handle is safe for concurrent use; the pipeline adds
// no synchronization around handler calls, so serving handlers must
// be stateless or internally synchronized.
type Pipeline struct {
	cfg      Config
	artifact *handler.ModelArtifact
	stats    *Stats

	mu      sync.RWMutex
	state   State
	readyAt time.Time
}

// New creates an Unloaded pipeline. Call Start before serving.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		stats: NewStats(),
		state: StateUnloaded,
	}
}

// Start transitions Unloaded -> Loading -> Ready, or -> Failed when
// the model artifact is unreadable or the OCR handler refuses it.
// It runs once, before request concurrency begins; request-time
// re-loading is not supported.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateReady {
		return nil
	}
	p.state = StateLoading

	if p.cfg.OCR == nil {
		p.state = StateFailed
		return fmt.Errorf("%w: no ocr handler bound", ErrNotReady)
	}

	artifact, err := handler.LoadArtifact(p.cfg.ModelPath)
	if err != nil {
		p.state = StateFailed
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if err := artifact.Validate(); err != nil {
		p.state = StateFailed
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	if !p.cfg.OCR.LoadModel(p.cfg.ModelPath) {
		p.state = StateFailed
		return fmt.Errorf("%w: ocr handler %s rejected model %s",
			ErrNotReady, p.cfg.OCR.Name(), p.cfg.ModelPath)
	}

	p.artifact = artifact
	p.state = StateReady
	p.readyAt = time.Now()

	logger.Info("serving pipeline ready",
		"model_path", p.cfg.ModelPath,
		"model_type", artifact.ModelType,
		"ocr_handler", p.cfg.OCR.Name(),
		"preprocess_handler", p.preprocessName(),
	)
	return nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Artifact returns the loaded model artifact, nil before Ready.
func (p *Pipeline) Artifact() *handler.ModelArtifact {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.artifact
}

func (p *Pipeline) preprocessName() string {
	if p.cfg.Preprocess == nil {
		return ""
	}
	return p.cfg.Preprocess.Name()
}

func (p *Pipeline) handlerVersions() map[string]string {
	versions := map[string]string{
		"ocr": handler.Version(p.cfg.OCR),
	}
	if p.cfg.Preprocess != nil {
		versions["preprocess"] = handler.Version(p.cfg.Preprocess)
	}
	return versions
}

func (p *Pipeline) uptime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != StateReady {
		return 0
	}
	return time.Since(p.readyAt)
}

// Handle executes the full request lifecycle for one inference call.
// A request failing never affects pipeline state or other in-flight
// requests; handler panics are converted into failure envelopes.
func (p *Pipeline) Handle(req Request) Response {
	if p.State() != StateReady {
		return Response{
			Status:         false,
			Message:        "service unavailable: model not loaded",
			Timestamp:      timestamp(),
			Method:         Method,
			CoreVersion:    p.cfg.Version,
			ProcessingTime: 0,
			HTTPStatus:     503,
		}
	}

	if len(req.Image) == 0 {
		resp := Response{
			Status:      false,
			Message:     "image payload is empty",
			Timestamp:   timestamp(),
			Method:      Method,
			CoreVersion: p.cfg.Version,
			HTTPStatus:  400,
		}
		p.stats.RecordOCR(0, false)
		return resp
	}

	if req.ContentType != "" && !isImageContentType(req.ContentType) {
		resp := Response{
			Status:      false,
			Message:     fmt.Sprintf("unsupported media type %q, expected an image", req.ContentType),
			Timestamp:   timestamp(),
			Method:      Method,
			CoreVersion: p.cfg.Version,
			HTTPStatus:  400,
		}
		p.stats.RecordOCR(0, false)
		return resp
	}

	start := time.Now()
	resp := p.infer(req.Image)
	elapsed := time.Since(start)

	resp.ProcessingTime = elapsed.Seconds()
	resp.Timestamp = timestamp()
	resp.Method = Method
	resp.CoreVersion = p.cfg.Version
	if resp.HTTPStatus == 0 {
		resp.HTTPStatus = 200
	}

	p.stats.RecordOCR(elapsed, resp.Status)
	return resp
}

// infer runs preprocess then predict and assembles the envelope body.
func (p *Pipeline) infer(image []byte) Response {
	var warnings []string

	payload := image
	if p.cfg.Preprocess != nil {
		result, err := p.callPreprocess(image)
		if err != nil {
			return Response{Status: false, Message: fmt.Sprintf("preprocess handler fault: %v", err)}
		}
		if !result.Success() {
			return Response{Status: false, Message: result.Err()}
		}
		// pass through whatever the handler produced; fall back to
		// the original bytes when it returned no payload
		switch data := result.Data().(type) {
		case []byte:
			payload = data
		case string:
			payload = []byte(data)
		case nil:
			warnings = append(warnings, "preprocess returned no data, using original image bytes")
		default:
			warnings = append(warnings, fmt.Sprintf("preprocess returned %T, using original image bytes", data))
		}
	}

	result, err := p.callPredict(payload)
	if err != nil {
		return Response{Status: false, Message: fmt.Sprintf("ocr handler fault: %v", err)}
	}
	if !result.Success() {
		return Response{Status: false, Message: result.Err()}
	}

	text, ok := result.Data().(string)
	if !ok {
		return Response{
			Status:  false,
			Message: fmt.Sprintf("ocr handler returned %T, expected recognized text", result.Data()),
		}
	}

	resp := Response{
		Status:          true,
		Data:            text,
		HandlerVersions: p.handlerVersions(),
	}

	completeness := "none"
	if result.Metadata() != nil {
		completeness = "partial"
	}
	if conf, ok := result.Confidence(); ok {
		scaled := conf * 100
		resp.Confidence = &scaled
		completeness = "full"
	} else {
		warnings = append(warnings, "ocr handler reported no confidence")
	}
	if warnings == nil {
		warnings = []string{}
	}

	info := map[string]string{"ocr_handler": p.cfg.OCR.Name()}
	if p.cfg.Preprocess != nil {
		info["preprocess_handler"] = p.cfg.Preprocess.Name()
	}

	resp.Details = &Details{
		CharacterCount:       len([]rune(text)),
		HandlerInfo:          info,
		Warnings:             warnings,
		MetadataCompleteness: completeness,
	}
	return resp
}

func (p *Pipeline) callPreprocess(image []byte) (result handler.Result, err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			logger.Error("preprocess handler panicked",
				"handler", p.preprocessName(), "panic", rvr)
			err = fmt.Errorf("panic: %v", rvr)
		}
	}()
	return p.cfg.Preprocess.Process(image), nil
}

func (p *Pipeline) callPredict(payload []byte) (result handler.Result, err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			logger.Error("ocr handler panicked",
				"handler", p.cfg.OCR.Name(), "panic", rvr)
			err = fmt.Errorf("panic: %v", rvr)
		}
	}()
	return p.cfg.OCR.Predict(payload), nil
}

func isImageContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "image/") || ct == "application/octet-stream"
}

// Health reports the pipeline's externally visible condition.
func (p *Pipeline) Health() Health {
	state := p.State()
	return Health{
		Status:          state.String(),
		ModelLoaded:     state == StateReady,
		Version:         p.cfg.Version,
		Uptime:          p.uptime().Seconds(),
		HandlerVersions: p.handlerVersions(),
	}
}

// Stats returns the current statistics snapshot.
func (p *Pipeline) Stats() StatsSnapshot {
	return p.stats.Snapshot(p.uptime())
}

// RecordGenerate counts a captcha-generation request against the
// pipeline's statistics.
func (p *Pipeline) RecordGenerate(processing time.Duration, success bool) {
	p.stats.RecordGenerate(processing, success)
}

// ResetStats zeroes the counters without touching pipeline state or
// the loaded model.
func (p *Pipeline) ResetStats() {
	p.stats.Reset()
}
