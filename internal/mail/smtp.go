package mail

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	netmail "net/mail"
)

// smtpDriver sends MIME multipart messages over SMTP with LOGIN-style
// plain auth and optional STARTTLS.
type smtpDriver struct {
	hostname string
	port     int
	username string
	password string
	startTLS bool
}

func newSMTP(cfg Config) (*smtpDriver, error) {
	if cfg.Hostname == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: required SMTP parameter is missing", ErrTransport)
	}
	port := cfg.Port
	if port == 0 {
		port = 25
	}
	return &smtpDriver{
		hostname: cfg.Hostname,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		startTLS: cfg.StartTLS,
	}, nil
}

func (d *smtpDriver) Send(m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	payload, err := buildMIME(m)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(d.hostname, strconv.Itoa(d.port))
	c, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, addr, err)
	}
	defer c.Close()

	if d.startTLS {
		if err := c.StartTLS(&tls.Config{ServerName: d.hostname}); err != nil {
			return fmt.Errorf("%w: starttls: %v", ErrTransport, err)
		}
	}

	auth := smtp.PlainAuth("", d.username, d.password, d.hostname)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("%w: auth: %v", ErrTransport, err)
	}

	if err := c.Mail(envelopeAddress(m.from)); err != nil {
		return fmt.Errorf("%w: mail from: %v", ErrTransport, err)
	}
	for _, rcpt := range m.recipients() {
		if err := c.Rcpt(envelopeAddress(rcpt)); err != nil {
			return fmt.Errorf("%w: rcpt %s: %v", ErrTransport, rcpt, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("%w: data: %v", ErrTransport, err)
	}
	if _, err := wc.Write(payload); err != nil {
		wc.Close()
		return fmt.Errorf("%w: write message: %v", ErrTransport, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%w: close message: %v", ErrTransport, err)
	}

	return c.Quit()
}

// envelopeAddress strips a display name ("A Name <a@b.org>" -> "a@b.org")
// for the SMTP envelope.
func envelopeAddress(addr string) string {
	if parsed, err := netmail.ParseAddress(addr); err == nil {
		return parsed.Address
	}
	return addr
}

// buildMIME renders the message as a multipart/mixed document with a plain
// text part and base64-encoded attachments.
func buildMIME(m *Message) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	if len(m.to) > 0 {
		fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(m.to, ", "))
	}
	if len(m.cc) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(m.cc, ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	text, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: text part: %v", ErrTransport, err)
	}
	if _, err := text.Write([]byte(m.body)); err != nil {
		return nil, fmt.Errorf("%w: text part: %v", ErrTransport, err)
	}

	for _, path := range m.attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read attachment: %v", ErrTransport, err)
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/octet-stream"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%s", filepath.Base(path))},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: attachment part: %v", ErrTransport, err)
		}
		if err := writeBase64(part, data); err != nil {
			return nil, fmt.Errorf("%w: encode attachment: %v", ErrTransport, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart: %v", ErrTransport, err)
	}
	return buf.Bytes(), nil
}

// writeBase64 writes data base64-encoded in 76-character lines per RFC 2045.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := 76
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:n]); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
