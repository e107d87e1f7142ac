// Package filter implements the SMTP content filter gateway: it sits
// in front of the MTA, classifies each message and stamps the verdict
// into headers before relaying onward.
package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
)

// SMTPFilter is an SMTP proxy that triages every message it receives.
type SMTPFilter struct {
	service *core.TriageService
	logger  *zap.Logger
	cfg     config.SMTPConfig
	server  *smtp.Server
}

// NewSMTPFilter creates an SMTP content filter
func NewSMTPFilter(service *core.TriageService, logger *zap.Logger, cfg config.SMTPConfig) *SMTPFilter {
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = "[**PHISHING**] "
	}
	return &SMTPFilter{
		service: service,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start runs the SMTP server until Stop is called.
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP filter starting", zap.String("address", f.cfg.ListenAddress))
	if err := f.server.ListenAndServe(); err != nil && err != smtp.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops the SMTP filter service
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// relay sends the stamped message onward using go-smtp.
func (f *SMTPFilter) relay(sender string, recipients []string, data []byte) error {
	addr := fmt.Sprintf("%s:%d", f.cfg.RelayAddress, f.cfg.RelayPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
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

	accepted := false
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		accepted = true
	}
	if !accepted {
		return fmt.Errorf("all recipients were rejected")
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
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

type smtpBackend struct {
	filter *SMTPFilter
}

func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.filter.logger.Error("Failed to parse message", zap.Error(err))
		return err
	}

	textContent, err := extractTextFromMessage(msg)
	if err != nil {
		s.filter.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	email := &core.Email{
		From:    s.sender,
		To:      s.recipients,
		Subject: decodeEncodedHeader(msg.Header.Get("Subject")),
		Body:    textContent,
		Headers: map[string][]string(msg.Header),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := s.filter.service.ScanEmail(ctx, email)
	if err != nil {
		// ScanEmail only fails on internal errors; deliver unstamped
		// rather than lose mail.
		s.filter.logger.Error("Triage failed, delivering without verdict",
			zap.Error(err),
			zap.String("sender", s.sender))
		return s.deliver(rawData)
	}

	phishing := result.Verdict.Severity() >= core.VerdictPhishing.Severity()
	if phishing && s.filter.cfg.BlockPhishing {
		s.filter.logger.Info("Rejecting phishing email",
			zap.String("from", s.sender),
			zap.String("verdict", string(result.Verdict)),
			zap.Int("confidence", result.Confidence))
		return fmt.Errorf("550 Rejected as phishing (confidence: %d)", result.Confidence)
	}

	stamped := s.stamp(rawData, msg, result, phishing)

	s.filter.logger.Info("Processed email",
		zap.String("from", s.sender),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("confidence", result.Confidence),
		zap.String("source", result.Source))

	return s.deliver(stamped)
}

func (s *smtpSession) deliver(data []byte) error {
	if !s.filter.cfg.RelayEnabled {
		s.filter.logger.Warn("Relay disabled, message dropped after analysis")
		return nil
	}
	if err := s.filter.relay(s.sender, s.recipients, data); err != nil {
		s.filter.logger.Error("Failed to relay message",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}
	return nil
}

// stamp rewrites the message with verdict headers prepended (and the
// subject prefixed for phishing when configured), keeping the original
// body bytes untouched so MIME parts survive.
func (s *smtpSession) stamp(rawData []byte, msg *mail.Message, result *core.ClassificationResult, phishing bool) []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "%s: %s\r\n", s.filter.cfg.VerdictHeader, result.Verdict)
	fmt.Fprintf(&out, "%s: %d\r\n", s.filter.cfg.ConfidenceHeader, result.Confidence)
	if len(result.Indicators) > 0 {
		fmt.Fprintf(&out, "%s: %s\r\n", s.filter.cfg.IndicatorsHeader, strings.Join(result.Indicators, "; "))
	}

	rewriteSubject := phishing && s.filter.cfg.ModifySubject && s.filter.cfg.SubjectPrefix != ""
	for key, values := range msg.Header {
		if rewriteSubject && strings.EqualFold(key, "Subject") {
			continue
		}
		for _, value := range values {
			fmt.Fprintf(&out, "%s: %s\r\n", key, value)
		}
	}
	if rewriteSubject {
		subject := decodeEncodedHeader(msg.Header.Get("Subject"))
		if !strings.HasPrefix(subject, s.filter.cfg.SubjectPrefix) {
			subject = s.filter.cfg.SubjectPrefix + subject
		}
		fmt.Fprintf(&out, "Subject: %s\r\n", subject)
	}
	out.WriteString("\r\n")

	if idx := bytes.Index(rawData, []byte("\r\n\r\n")); idx != -1 {
		out.Write(rawData[idx+4:])
	} else if idx := bytes.Index(rawData, []byte("\n\n")); idx != -1 {
		out.Write(rawData[idx+2:])
	}

	return out.Bytes()
}

func (s *smtpSession) Logout() error {
	return nil
}
