package mail

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// mailgun posts messages to the Mailgun HTTP API as a multipart form,
// authenticated with the API key.
type mailgun struct {
	apiHost    string
	domain     string
	key        string
	httpClient *http.Client
}

func newMailgun(cfg Config) (*mailgun, error) {
	if cfg.APIHost == "" || cfg.Domain == "" || cfg.Key == "" {
		return nil, fmt.Errorf("%w: required Mailgun parameter is missing", ErrTransport)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &mailgun{apiHost: cfg.APIHost, domain: cfg.Domain, key: cfg.Key, httpClient: hc}, nil
}

func (d *mailgun) endpoint() string {
	base := d.apiHost
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/v3/%s/messages", base, d.domain)
}

func (d *mailgun) Send(m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct {
		name   string
		values []string
	}{
		{"from", []string{m.from}},
		{"subject", []string{m.subject}},
		{"text", []string{m.body}},
		{"to", m.to},
		{"cc", m.cc},
		{"bcc", m.bcc},
	}
	for _, f := range fields {
		for _, v := range f.values {
			if err := w.WriteField(f.name, v); err != nil {
				return fmt.Errorf("%w: write field %s: %v", ErrTransport, f.name, err)
			}
		}
	}

	for _, path := range m.attachments {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: open attachment: %v", ErrTransport, err)
		}
		part, err := w.CreateFormFile("attachment", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return fmt.Errorf("%w: attach %s: %v", ErrTransport, path, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: finish form: %v", ErrTransport, err)
	}

	req, err := http.NewRequest(http.MethodPost, d.endpoint(), &buf)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.SetBasicAuth("api", d.key)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: Mailgun API error - %d: %s",
			ErrTransport, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
