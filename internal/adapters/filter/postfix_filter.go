package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/detector"
	"go.uber.org/zap"
)

// PostfixFilter implements a Postfix after-queue content filter. Messages are
// received over SMTP, annotated and re-injected at forwardAddr.
type PostfixFilter struct {
	service     *detector.Service
	logger      *zap.Logger
	listenAddr  string
	forwardAddr string
	opts        Options
	server      *smtp.Server
	timeout     time.Duration

	// forward re-injects an annotated message, replaced in tests
	forward func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *detector.Service,
	logger *zap.Logger,
	listenAddr string,
	forwardAddr string,
	opts Options,
) *PostfixFilter {
	f := &PostfixFilter{
		service:     service,
		logger:      logger,
		listenAddr:  listenAddr,
		forwardAddr: forwardAddr,
		opts:        opts,
		timeout:     10 * time.Second,
	}
	f.forward = f.sendToPostfix
	return f
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting",
		zap.String("address", f.listenAddr),
		zap.String("forward_address", f.forwardAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage classifies one raw message
func (f *PostfixFilter) ProcessMessage(ctx context.Context, raw []byte) (*core.Prediction, error) {
	a, err := f.service.Analyze(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &a.Prediction, nil
}

// handle analyzes a received message and either rejects or forwards it
func (f *PostfixFilter) handle(sender string, recipients []string, raw []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	domain := senderDomain(sender)
	pred, analysisErr := f.ProcessMessage(ctx, raw)
	if analysisErr != nil {
		// Unanalyzable mail is passed through, never lost
		f.logger.Error("Failed to analyze message",
			zap.Error(analysisErr),
			zap.String("sender", sender),
			zap.String("sender_domain", domain))
	}

	if shouldBlock(pred, f.opts) {
		f.logger.Info("Rejecting phishing message",
			zap.String("sender", sender),
			zap.String("sender_domain", domain),
			zap.Float64("confidence", pred.Confidence),
			zap.String("reasons", reasonList(pred.Reasons)))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (confidence: %.2f)", pred.Confidence),
		}
	}

	annotated := prependHeaders(raw, decisionHeaders(pred, analysisErr, f.opts))
	if err := f.forward(sender, recipients, annotated); err != nil {
		f.logger.Error("Failed to send message back to Postfix",
			zap.Error(err),
			zap.String("sender", sender))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary failure forwarding message",
		}
	}

	if pred != nil {
		f.logger.Info("Processed message",
			zap.String("sender", sender),
			zap.String("sender_domain", domain),
			zap.String("prediction", pred.Label.String()),
			zap.Float64("confidence", pred.Confidence))
	}
	return nil
}

// sendToPostfix sends the processed message back to Postfix using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", f.forwardAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message has already been accepted
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reads the message and hands it to the filter
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}
	return s.filter.handle(s.sender, s.recipients, raw)
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
