package filter

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-milter"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/detector"
	"go.uber.org/zap"
)

// MilterFilter implements a Milter filter for phishing detection
type MilterFilter struct {
	service    *detector.Service
	logger     *zap.Logger
	listenAddr string
	opts       Options
	server     *milter.Server
	timeout    time.Duration
}

// NewMilterFilter creates a new Milter filter
func NewMilterFilter(
	service *detector.Service,
	logger *zap.Logger,
	listenAddr string,
	opts Options,
) *MilterFilter {
	return &MilterFilter{
		service:    service,
		logger:     logger,
		listenAddr: listenAddr,
		opts:       opts,
		timeout:    10 * time.Second,
	}
}

// Start starts the Milter filter service
func (f *MilterFilter) Start() error {
	f.server = &milter.Server{
		NewMilter: func() milter.Milter {
			return &milterSession{filter: f}
		},
		Actions: milter.OptAddHeader,
	}

	ln, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}

	f.logger.Info("Milter filter started", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.Serve(ln); err != nil {
			f.logger.Error("Milter server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Milter filter service
func (f *MilterFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage classifies one raw message
func (f *MilterFilter) ProcessMessage(ctx context.Context, raw []byte) (*core.Prediction, error) {
	a, err := f.service.Analyze(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &a.Prediction, nil
}

// decide analyzes a reassembled message and returns the headers to add, or
// reject when the message should be refused
func (f *MilterFilter) decide(sender string, raw []byte) (headers []header, reject bool) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	domain := senderDomain(sender)
	pred, err := f.ProcessMessage(ctx, raw)
	if err != nil {
		f.logger.Error("Failed to analyze message",
			zap.Error(err),
			zap.String("sender", sender),
			zap.String("sender_domain", domain))
		return decisionHeaders(nil, err, f.opts), false
	}

	f.logger.Info("Processed message",
		zap.String("sender", sender),
		zap.String("sender_domain", domain),
		zap.String("prediction", pred.Label.String()),
		zap.Float64("confidence", pred.Confidence))

	if shouldBlock(pred, f.opts) {
		f.logger.Info("Rejecting phishing message",
			zap.String("sender", sender),
			zap.String("sender_domain", domain),
			zap.Float64("confidence", pred.Confidence),
			zap.String("reasons", reasonList(pred.Reasons)))
		return nil, true
	}
	return decisionHeaders(pred, nil, f.opts), false
}

// milterSession reassembles one message from milter callbacks
type milterSession struct {
	milter.NoOpMilter
	filter  *MilterFilter
	sender  string
	headers bytes.Buffer
	body    bytes.Buffer
}

func (s *milterSession) reset() {
	s.sender = ""
	s.headers.Reset()
	s.body.Reset()
}

// MailFrom starts a new message
func (s *milterSession) MailFrom(from string, m *milter.Modifier) (milter.Response, error) {
	s.reset()
	s.sender = from
	return milter.RespContinue, nil
}

// Header records one header line
func (s *milterSession) Header(name string, value string, m *milter.Modifier) (milter.Response, error) {
	s.headers.WriteString(name + ": " + value + "\r\n")
	return milter.RespContinue, nil
}

// BodyChunk records part of the body
func (s *milterSession) BodyChunk(chunk []byte, m *milter.Modifier) (milter.Response, error) {
	s.body.Write(chunk)
	return milter.RespContinue, nil
}

// Body classifies the complete message
func (s *milterSession) Body(m *milter.Modifier) (milter.Response, error) {
	defer s.reset()

	raw := make([]byte, 0, s.headers.Len()+2+s.body.Len())
	raw = append(raw, s.headers.Bytes()...)
	raw = append(raw, '\r', '\n')
	raw = append(raw, s.body.Bytes()...)

	headers, reject := s.filter.decide(s.sender, raw)
	if reject {
		return milter.RespReject, nil
	}

	for _, h := range headers {
		if h.name == "" {
			continue
		}
		if err := m.AddHeader(h.name, sanitizeHeaderValue(h.value)); err != nil {
			s.filter.logger.Error("Failed to add header", zap.String("header", h.name), zap.Error(err))
		}
	}
	return milter.RespAccept, nil
}

// Abort discards the current message
func (s *milterSession) Abort(m *milter.Modifier) error {
	s.reset()
	return nil
}
