// Package httpapi serves predictions over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/detector"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	uploadField     = "file"
)

// Options configures the HTTP server
type Options struct {
	Address       string
	MaxUploadSize int
	Debug         bool
}

// Server exposes the detection service over HTTP
type Server struct {
	app     *fiber.App
	service *detector.Service
	logger  *zap.Logger
	opts    Options
	metrics *metrics
}

// ReasonResponse is one ranked contributor in a prediction response
type ReasonResponse struct {
	Feature     string  `json:"feature"`
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// PredictResponse is the body of a successful prediction
type PredictResponse struct {
	Prediction string                 `json:"prediction"`
	Label      int                    `json:"label"`
	Confidence float64                `json:"confidence"`
	Reasons    []ReasonResponse       `json:"reasons"`
	FromDomain string                 `json:"from_domain"`
	RequestID  string                 `json:"request_id"`
	Enrichment *core.EnrichmentReport `json:"enrichment,omitempty"`
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer creates the HTTP server and registers its routes
func NewServer(service *detector.Service, logger *zap.Logger, opts Options) *Server {
	s := &Server{
		service: service,
		logger:  logger,
		opts:    opts,
		metrics: newMetrics(),
	}

	cfg := fiber.Config{
		AppName:               "phish-detector",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
	}
	if opts.MaxUploadSize > 0 {
		cfg.BodyLimit = opts.MaxUploadSize
	}

	s.app = fiber.New(cfg)
	s.app.Use(recover.New())
	s.app.Use(cors.New())
	s.app.Use(requestID)

	s.app.Get("/", s.root)
	s.app.Get("/health", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	s.app.Post("/predict_email", s.predictEmail)

	return s
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts listening in the background
func (s *Server) Start() error {
	s.logger.Info("HTTP API starting", zap.String("address", s.opts.Address))

	go func() {
		if err := s.app.Listen(s.opts.Address); err != nil {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

// ProcessMessage classifies one raw message
func (s *Server) ProcessMessage(ctx context.Context, raw []byte) (*core.Prediction, error) {
	a, err := s.service.Analyze(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &a.Prediction, nil
}

func requestID(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	c.Locals(requestIDKey, id)
	c.Set(requestIDHeader, id)
	return c.Next()
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

func (s *Server) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "PhishDetect API is running"})
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "ok",
		"model":      s.service.Model() != nil,
		"enrichment": s.service.EnrichmentEnabled(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) predictEmail(c *fiber.Ctx) error {
	start := time.Now()

	raw, err := readUpload(c)
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	enrich := c.QueryBool("enrich", false)
	ctx := c.UserContext()

	var a *detector.Analysis
	if enrich {
		a, err = s.service.AnalyzeAndEnrich(ctx, raw)
	} else {
		a, err = s.service.Analyze(ctx, raw)
	}
	if err != nil {
		if core.IsClientError(err) {
			return s.fail(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		s.logger.Error("Failed to classify upload",
			zap.String("request_id", requestIDOf(c)),
			zap.Error(err))
		return s.fail(c, fiber.StatusInternalServerError, "internal error", err)
	}

	s.metrics.latency.Observe(time.Since(start).Seconds())
	s.metrics.predictions.WithLabelValues(a.Prediction.Label.String()).Inc()
	s.metrics.requests.WithLabelValues("200").Inc()

	return c.JSON(newPredictResponse(a, requestIDOf(c)))
}

func newPredictResponse(a *detector.Analysis, id string) PredictResponse {
	reasons := make([]ReasonResponse, 0, len(a.Prediction.Reasons))
	for _, r := range a.Prediction.Reasons {
		reasons = append(reasons, ReasonResponse{
			Feature:     r.Feature,
			Value:       r.Value,
			Weight:      r.Weight,
			Description: r.Description,
		})
	}

	return PredictResponse{
		Prediction: a.Prediction.Label.String(),
		Label:      int(a.Prediction.Label),
		Confidence: a.Prediction.Confidence,
		Reasons:    reasons,
		FromDomain: a.Prediction.FromDomain,
		RequestID:  id,
		Enrichment: a.Enrichment,
	}
}

// readUpload returns the uploaded message, rejecting missing or binary files
func readUpload(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		return nil, errors.New("no file provided, send multipart/form-data with key 'file'")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("uploaded file could not be opened")
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("uploaded file could not be read")
	}
	if len(raw) == 0 {
		return nil, errors.New("uploaded file is empty")
	}

	if mtype := mimetype.Detect(raw); !isTextual(mtype) {
		return nil, errors.New("uploaded file is not a text email (detected " + mtype.String() + ")")
	}
	return raw, nil
}

// isTextual reports whether a detected type descends from text/plain
func isTextual(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("message/rfc822") {
			return true
		}
	}
	return false
}

// fail writes an error response. Internal details are only exposed in debug mode.
func (s *Server) fail(c *fiber.Ctx, status int, message string, cause error) error {
	s.metrics.requests.WithLabelValues(strconv.Itoa(status)).Inc()

	resp := ErrorResponse{Error: message, RequestID: requestIDOf(c)}
	if s.opts.Debug && cause != nil {
		resp.Detail = cause.Error()
	}
	return c.Status(status).JSON(resp)
}

// handleError renders errors escaping handlers, such as oversized bodies
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	} else {
		s.logger.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
	}
	return s.fail(c, status, message, err)
}
