package service

import (
	"bytes"
	"errors"
	"testing"

	"budget/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func TestGenerateSharedEmailBody(t *testing.T) {
	s := NewEmailService(&config.EmailConfig{})
	body := s.generateSharedEmailBody("张三", "李四", "家庭开支")
	assert.Contains(t, body, "张三")
	assert.Contains(t, body, "李四")
	assert.Contains(t, body, "家庭开支")

	// 用户输入需转义
	body = s.generateSharedEmailBody("<b>x</b>", "y", "z")
	assert.NotContains(t, body, "<b>x</b>")
	assert.Contains(t, body, "&lt;b&gt;x&lt;/b&gt;")
}

func TestSendBudgetSharedEmail_Disabled(t *testing.T) {
	s := NewEmailService(&config.EmailConfig{Enabled: false})
	assert.False(t, s.Enabled())
	err := s.SendBudgetSharedEmail("a@example.com", "a", "b", "c")
	assert.ErrorIs(t, err, ErrEmailDisabled)

	var nilService *EmailService
	assert.False(t, nilService.Enabled())
}

func TestSendBudgetSharedEmail(t *testing.T) {
	s := NewEmailService(&config.EmailConfig{Enabled: true, From: "noreply@example.com"})

	var sent *gomail.Message
	s.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	require.NoError(t, s.SendBudgetSharedEmail("grantee@example.com", "grantee", "owner", "旅行"))
	require.NotNil(t, sent)
	assert.Equal(t, []string{"grantee@example.com"}, sent.GetHeader("To"))

	var buf bytes.Buffer
	_, err := sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "noreply@example.com")

	assert.Error(t, s.SendBudgetSharedEmail("", "grantee", "owner", "旅行"))

	s.send = func(m *gomail.Message) error { return errors.New("smtp down") }
	assert.Error(t, s.SendBudgetSharedEmail("grantee@example.com", "grantee", "owner", "旅行"))
}
