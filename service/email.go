package service

import (
	"errors"
	"fmt"
	"html"

	"budget/config"

	"gopkg.in/gomail.v2"
)

// ErrEmailDisabled 邮件服务未启用
var ErrEmailDisabled = errors.New("邮件服务未启用，请配置 BUDGET_EMAIL_ENABLED=true")

// EmailService 邮件服务
type EmailService struct {
	cfg  *config.EmailConfig
	send func(m *gomail.Message) error
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	s := &EmailService{cfg: cfg}
	s.send = s.dialAndSend
	return s
}

// WithSender 替换实际的发送函数
func (s *EmailService) WithSender(send func(m *gomail.Message) error) *EmailService {
	s.send = send
	return s
}

// Enabled 是否已启用
func (s *EmailService) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Enabled
}

// SendBudgetSharedEmail 通知被授权用户：某预算已共享给他
func (s *EmailService) SendBudgetSharedEmail(toEmail, granteeName, granterName, budgetName string) error {
	if !s.Enabled() {
		return ErrEmailDisabled
	}
	if toEmail == "" {
		return errors.New("收件人邮箱为空")
	}

	subject := "【预算助手】有人与您共享了预算"
	body := s.generateSharedEmailBody(granteeName, granterName, budgetName)

	return s.sendEmail(toEmail, subject, body)
}

// generateSharedEmailBody 生成共享通知邮件内容
func (s *EmailService) generateSharedEmailBody(granteeName, granterName, budgetName string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { background: linear-gradient(135deg, #059669, #047857); color: white; padding: 30px; text-align: center; }
        .content { padding: 40px 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 20px; }
        .budget { font-size: 20px; font-weight: 600; color: #047857; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>预算助手</h1></div>
        <div class="content">
            <p>您好，<strong>%s</strong>！</p>
            <p><strong>%s</strong> 将预算 <span class="budget">%s</span> 共享给了您。</p>
            <p>您现在可以查看、记录和修改该预算下的消费记录。</p>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(granteeName), html.EscapeString(granterName), html.EscapeString(budgetName))
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.From, "预算助手"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

func (s *EmailService) dialAndSend(m *gomail.Message) error {
	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	return d.DialAndSend(m)
}
