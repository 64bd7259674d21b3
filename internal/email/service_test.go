package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{name: "empty config", config: Config{}, expected: false},
		{name: "missing host", config: Config{Port: "587", From: "web@example.com"}, expected: false},
		{name: "missing port", config: Config{Host: "smtp.example.com", From: "web@example.com"}, expected: false},
		{name: "missing from", config: Config{Host: "smtp.example.com", Port: "587"}, expected: false},
		{name: "fully configured", config: Config{Host: "smtp.example.com", Port: "587", From: "web@example.com"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewService(tt.config).IsConfigured())
		})
	}
}

func TestSendHTMLEmailRequiresConfiguration(t *testing.T) {
	err := NewService(Config{}).SendHTMLEmail([]string{"a@example.com"}, "x", "<p>x</p>", "x")
	assert.Error(t, err)
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func capture(svc *Service, out *sentMail, err error) {
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*out = sentMail{addr: addr, from: from, to: to, msg: string(msg)}
		return err
	}
}

func TestSendContactNotification(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "web@example.com", FromName: "Sitio web"})
	var sent sentMail
	capture(svc, &sent, nil)

	err := svc.SendContactNotification("owner@example.com", ContactNotification{
		Name:       "Ana <script>",
		Email:      "ana@example.com",
		Phone:      "600000000",
		Message:    "Hola",
		ReceivedAt: time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", sent.addr)
	assert.Equal(t, "web@example.com", sent.from)
	assert.Equal(t, []string{"owner@example.com"}, sent.to)
	assert.Contains(t, sent.msg, "To: owner@example.com\r\n")
	assert.Contains(t, sent.msg, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, sent.msg, "Ana &lt;script&gt;")
	assert.Contains(t, sent.msg, "600000000")
	assert.Contains(t, sent.msg, "05/03/2024 10:30")
	assert.Contains(t, sent.msg, "<h1>Sitio web</h1>")
}

func TestSendContactNotificationOmitsEmptyPhone(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "25", From: "web@example.com"})
	var sent sentMail
	capture(svc, &sent, nil)

	require.NoError(t, svc.SendContactNotification("owner@example.com", ContactNotification{Name: "Luis", Email: "l@example.com", Message: "Hola"}))
	assert.False(t, strings.Contains(sent.msg, "Teléfono"))
}

func TestSendErrorsAreWrapped(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "25", From: "web@example.com"})
	boom := errors.New("connection refused")
	var sent sentMail
	capture(svc, &sent, boom)

	err := svc.SendHTMLEmail([]string{"a@example.com"}, "Asunto", "<p>x</p>", "x")
	assert.ErrorIs(t, err, boom)
}
