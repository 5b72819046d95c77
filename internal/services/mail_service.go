package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	dbm "barangay/internal/models/db_models"
)

type IMailService interface {
	SendRequestStatusUpdate(to, residentName, referenceNumber string, status dbm.RequestStatus, remarks string) error
	SendMailToResetPassword(to, token string) error
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	UseSSL     bool // implicit TLS (465); otherwise STARTTLS
	RequireTLS bool

	AppName     string
	FrontendURL string
}

type smtpMailService struct {
	cfg     SMTPConfig
	htmlTpl *template.Template
	textTpl *texttemplate.Template
}

func NewSMTPMailService(cfg SMTPConfig) IMailService {
	return &smtpMailService{
		cfg:     cfg,
		htmlTpl: template.Must(template.New("html").Parse(baseHTMLTemplate)),
		textTpl: texttemplate.Must(texttemplate.New("text").Parse(plainTextTemplate)),
	}
}

var statusMessages = map[dbm.RequestStatus]string{
	dbm.RequestAwaitingPayment: "Your request has been approved. Please settle the fee to continue processing.",
	dbm.RequestProcessing:      "We received your payment and your document is now being prepared.",
	dbm.RequestReadyForPickup:  "Your document is ready. Please bring a valid ID when you claim it at the barangay hall.",
	dbm.RequestInTransit:       "Your document is on its way to the address on file.",
	dbm.RequestCompleted:       "Your request is complete. Thank you for using the portal.",
	dbm.RequestRejected:        "Unfortunately your request was not approved.",
}

// NotifiableStatus reports whether residents are e-mailed on entering s.
func NotifiableStatus(s dbm.RequestStatus) bool {
	_, ok := statusMessages[s]
	return ok
}

func (s *smtpMailService) SendRequestStatusUpdate(to, residentName, referenceNumber string, status dbm.RequestStatus, remarks string) error {
	intro := fmt.Sprintf("Hi %s, request %s is now %s. %s",
		residentName, referenceNumber, strings.ReplaceAll(string(status), "_", " "), statusMessages[status])
	if remarks != "" {
		intro += " Remarks: " + remarks
	}
	subject := fmt.Sprintf("[%s] Request %s update", s.cfg.AppName, referenceNumber)
	link := fmt.Sprintf("%s/requests?ref=%s", s.cfg.FrontendURL, url.QueryEscape(referenceNumber))

	html, text, err := s.renderEmail(EmailData{
		Title:     subject,
		Intro:     intro,
		ButtonURL: link,
		ButtonTxt: "View request",
		AppName:   s.cfg.AppName,
		Year:      time.Now().Year(),
	})
	if err != nil {
		return err
	}
	return s.send(to, subject, html, text)
}

func (s *smtpMailService) SendMailToResetPassword(to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.FrontendURL, url.QueryEscape(token))
	subject := "Reset your password"

	html, text, err := s.renderEmail(EmailData{
		Title:     subject,
		Intro:     "We received a request to reset your password. If you did not request this, you can ignore this email.",
		ButtonURL: link,
		ButtonTxt: "Reset Password",
		AppName:   s.cfg.AppName,
		Year:      time.Now().Year(),
	})
	if err != nil {
		return err
	}
	return s.send(to, subject, html, text)
}

// ------------------- Rendering -------------------

type EmailData struct {
	Title     string
	Intro     string
	ButtonURL string
	ButtonTxt string
	AppName   string
	Year      int
}

const baseHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #f1f5f9; color: #0f172a; font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; }
    .container { max-width: 600px; margin: 32px auto; background: #ffffff; border-radius: 12px; overflow: hidden; }
    .header { padding: 24px 32px; background: #1d4ed8; color: #ffffff; font-weight: 700; font-size: 20px; }
    .hero { padding: 32px; }
    .btn { display: inline-block; padding: 14px 28px; background: #1d4ed8; color: #ffffff !important; text-decoration: none; border-radius: 8px; }
    .muted { color: #64748b; font-size: 13px; }
    .footer { padding: 20px 32px; color: #64748b; font-size: 12px; text-align: center; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">{{.AppName}}</div>
    <div class="hero">
      <h1>{{.Title}}</h1>
      <p>{{.Intro}}</p>
      {{if .ButtonURL}}
        <p><a class="btn" href="{{.ButtonURL}}">{{.ButtonTxt}}</a></p>
        <p class="muted">If the button doesn't work, open this link: {{.ButtonURL}}</p>
      {{end}}
    </div>
    <div class="footer">&copy; {{.Year}} {{.AppName}}</div>
  </div>
</body>
</html>`

const plainTextTemplate = `{{.Title}}

{{.Intro}}

{{if .ButtonURL}}Open this link:
{{.ButtonURL}}
{{end}}
-- {{.AppName}} (c) {{.Year}}
`

func (s *smtpMailService) renderEmail(data EmailData) (html string, text string, err error) {
	var hb, tb bytes.Buffer
	if err = s.htmlTpl.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err = s.textTpl.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

// ------------------- SMTP Send -------------------

func (s *smtpMailService) buildMessage(to, subject, htmlBody, textBody string, now time.Time) []byte {
	boundary := fmt.Sprintf("mixed_%d", now.UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = fmt.Fprintf(&msg, format, a...) }

	write("From: %s\r\n", s.formatFromHeader())
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	write("Date: %s\r\n", now.Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)
	return msg.Bytes()
}

func (s *smtpMailService) send(to, subject, htmlBody, textBody string) error {
	msg := s.buildMessage(to, subject, htmlBody, textBody, time.Now())
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if s.cfg.UseSSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if !s.cfg.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err = c.StartTLS(tlsCfg); err != nil {
				return err
			}
		} else if s.cfg.RequireTLS {
			return fmt.Errorf("server does not support STARTTLS and RequireTLS=true")
		}
	}

	if err = c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
		return err
	}
	if err = c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *smtpMailService) formatFromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", name), s.cfg.From)
}

// logMailService stands in when SMTP is not configured.
type logMailService struct {
	log *zap.Logger
}

func NewLogMailService(log *zap.Logger) IMailService {
	return &logMailService{log: log}
}

func (l *logMailService) SendRequestStatusUpdate(to, _, referenceNumber string, status dbm.RequestStatus, _ string) error {
	l.log.Info("mail disabled: request status update",
		zap.String("to", to), zap.String("reference_number", referenceNumber), zap.String("status", string(status)))
	return nil
}

func (l *logMailService) SendMailToResetPassword(to, _ string) error {
	l.log.Info("mail disabled: password reset", zap.String("to", to))
	return nil
}
