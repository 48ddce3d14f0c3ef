// Package notify delivers the "review queue is empty" notification through an
// SMTP relay. Delivery happens in the background and never blocks or fails
// the request that triggered it.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder receives delivery outcomes.
type Recorder interface {
	Notification(result string)
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Config describes the relay and the message envelope.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Subject  string
	// Cooldown is the minimum gap between two notifications. Zero sends one
	// for every empty queue observed.
	Cooldown time.Duration
	// Retries is the number of extra attempts after a failed delivery.
	Retries int
	// Timeout bounds one delivery including retries.
	Timeout time.Duration
}

// Mailer implements review.Notifier.
type Mailer struct {
	cfg      Config
	send     SendFunc
	limiter  *rate.Limiter
	logger   Logger
	recorder Recorder
	interval time.Duration
	wg       sync.WaitGroup
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) Option {
	return func(m *Mailer) {
		m.send = fn
	}
}

// WithRecorder reports delivery outcomes.
func WithRecorder(r Recorder) Option {
	return func(m *Mailer) {
		m.recorder = r
	}
}

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(m *Mailer) {
		m.interval = d
	}
}

// NewMailer creates a Mailer.
func NewMailer(cfg Config, logger Logger, opts ...Option) *Mailer {
	if cfg.Subject == "" {
		cfg.Subject = "Review queue is empty"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.Cooldown > 0 {
		limit = rate.Every(cfg.Cooldown)
	}

	m := &Mailer{
		cfg:      cfg,
		send:     smtp.SendMail,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		interval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// QueueEmpty schedules a notification for folder and returns immediately.
func (m *Mailer) QueueEmpty(ctx context.Context, folder string) error {
	if !m.limiter.Allow() {
		m.logger.Debug("exhaustion notification suppressed by cooldown", "folder", folder)
		m.observe("throttled")
		return nil
	}

	msg := m.message(folder, time.Now())
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Timeout)
		defer cancel()

		if err := m.deliver(ctx, msg); err != nil {
			m.logger.Error("failed to send exhaustion notification", "folder", folder, "error", err)
			m.observe("error")
			return
		}
		m.logger.Info("exhaustion notification sent", "folder", folder, "recipients", len(m.cfg.To))
		m.observe("sent")
	}()
	return nil
}

// Close waits for in-flight deliveries.
func (m *Mailer) Close() {
	m.wg.Wait()
}

func (m *Mailer) deliver(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(m.cfg.Retries, 0))), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := m.send(addr, auth, m.cfg.From, m.cfg.To, msg)
		if err != nil {
			m.logger.Debug("smtp delivery attempt failed", "attempt", attempt, "error", err)
		}
		return err
	}, policy)
}

func (m *Mailer) message(folder string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", m.cfg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "There are no files left to review in %s.\r\n", folder)
	return b.Bytes()
}

func (m *Mailer) observe(result string) {
	if m.recorder != nil {
		m.recorder.Notification(result)
	}
}
