package notify

import (
	"context"
	"errors"
	"net/smtp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

type fakeRelay struct {
	mu       sync.Mutex
	fail     int
	attempts int
	addr     string
	from     string
	to       []string
	msg      string
	auth     smtp.Auth
}

func (r *fakeRelay) send(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.attempts <= r.fail {
		return errors.New("451 try again later")
	}
	r.addr, r.auth, r.from, r.to, r.msg = addr, a, from, to, string(msg)
	return nil
}

type resultLog struct {
	mu      sync.Mutex
	results []string
}

func (l *resultLog) Notification(result string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, result)
}

func testConfig() Config {
	return Config{
		Host:     "smtp.example.test",
		Port:     587,
		Username: "relay",
		Password: "secret",
		From:     "review@example.test",
		To:       []string{"a@example.test", "b@example.test"},
		Retries:  2,
	}
}

func TestMailer_SendsMessage(t *testing.T) {
	relay := &fakeRelay{}
	results := &resultLog{}
	m := NewMailer(testConfig(), &NoOpLogger{}, WithSendFunc(relay.send), WithRecorder(results))

	require.NoError(t, m.QueueEmpty(context.Background(), "/pending"))
	m.Close()

	assert.Equal(t, 1, relay.attempts)
	assert.Equal(t, "smtp.example.test:587", relay.addr)
	assert.NotNil(t, relay.auth)
	assert.Equal(t, "review@example.test", relay.from)
	assert.Equal(t, []string{"a@example.test", "b@example.test"}, relay.to)
	assert.Contains(t, relay.msg, "Subject: Review queue is empty\r\n")
	assert.Contains(t, relay.msg, "To: a@example.test, b@example.test\r\n")
	assert.Contains(t, relay.msg, "no files left to review in /pending")
	assert.Equal(t, []string{"sent"}, results.results)
}

func TestMailer_RetriesThenGivesUp(t *testing.T) {
	relay := &fakeRelay{fail: 10}
	results := &resultLog{}
	m := NewMailer(testConfig(), &NoOpLogger{},
		WithSendFunc(relay.send), WithRecorder(results), WithRetryInterval(time.Millisecond))

	require.NoError(t, m.QueueEmpty(context.Background(), "/pending"), "failures never reach the caller")
	m.Close()

	assert.Equal(t, 3, relay.attempts)
	assert.Equal(t, []string{"error"}, results.results)
}

func TestMailer_RecoversAfterTransientFailure(t *testing.T) {
	relay := &fakeRelay{fail: 1}
	m := NewMailer(testConfig(), &NoOpLogger{}, WithSendFunc(relay.send), WithRetryInterval(time.Millisecond))

	require.NoError(t, m.QueueEmpty(context.Background(), "/pending"))
	m.Close()

	assert.Equal(t, 2, relay.attempts)
	assert.NotEmpty(t, relay.msg)
}

func TestMailer_Cooldown(t *testing.T) {
	relay := &fakeRelay{}
	results := &resultLog{}
	cfg := testConfig()
	cfg.Cooldown = time.Hour
	m := NewMailer(cfg, &NoOpLogger{}, WithSendFunc(relay.send), WithRecorder(results))

	require.NoError(t, m.QueueEmpty(context.Background(), "/pending"))
	require.NoError(t, m.QueueEmpty(context.Background(), "/pending"))
	m.Close()

	assert.Equal(t, 1, relay.attempts)
	assert.ElementsMatch(t, []string{"sent", "throttled"}, results.results)
}

func TestMailer_NoAuthWithoutUsername(t *testing.T) {
	relay := &fakeRelay{}
	cfg := testConfig()
	cfg.Username = ""
	m := NewMailer(cfg, &NoOpLogger{}, WithSendFunc(relay.send))

	require.NoError(t, m.QueueEmpty(context.Background(), "/pending"))
	m.Close()
	assert.Nil(t, relay.auth)
}
