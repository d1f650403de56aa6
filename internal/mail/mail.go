// Package mail delivers the reconciliation artifact to operators. Two
// transports are supported: the Mailgun HTTP API and plain SMTP. The
// driver set is closed; selection happens at construction time.
package mail

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/treasuryops/payout-reconciler/internal/domain"
)

// ErrTransport reports a misconfigured or failed mail transport.
var ErrTransport = errors.New("mail transport")

// Driver delivers a finished message.
type Driver interface {
	Send(m *Message) error
}

// Message is built up field by field and validated on send. Each message
// owns its own attachment list.
type Message struct {
	subject     string
	from        string
	body        string
	to          []string
	cc          []string
	bcc         []string
	attachments []string
}

// NewMessage returns an empty message.
func NewMessage() *Message {
	return &Message{}
}

func (m *Message) Subject(s string) *Message {
	m.subject = s
	return m
}

func (m *Message) From(addr string) *Message {
	m.from = addr
	return m
}

func (m *Message) To(addrs ...string) *Message {
	m.to = append(m.to, addrs...)
	return m
}

func (m *Message) CC(addrs ...string) *Message {
	m.cc = append(m.cc, addrs...)
	return m
}

func (m *Message) BCC(addrs ...string) *Message {
	m.bcc = append(m.bcc, addrs...)
	return m
}

func (m *Message) Body(text string) *Message {
	m.body = text
	return m
}

func (m *Message) Attach(path string) *Message {
	m.attachments = append(m.attachments, path)
	return m
}

// Validate checks the fields every transport requires.
func (m *Message) Validate() error {
	if m.subject == "" || m.from == "" || m.body == "" {
		return fmt.Errorf("%w: subject, sender and message text are all required", ErrTransport)
	}
	if len(m.to) == 0 && len(m.cc) == 0 && len(m.bcc) == 0 {
		return fmt.Errorf("%w: at least one recipient (to, cc or bcc) is required", ErrTransport)
	}
	return nil
}

func (m *Message) recipients() []string {
	var all []string
	all = append(all, m.to...)
	all = append(all, m.cc...)
	all = append(all, m.bcc...)
	return all
}

// Config selects and parameterises a transport.
type Config struct {
	Driver string // "mailgun" or "smtp"

	// Mailgun.
	APIHost    string
	Domain     string
	Key        string
	HTTPClient *http.Client

	// SMTP.
	Hostname string
	Port     int
	Username string
	Password string
	StartTLS bool
}

// Driver names.
const (
	DriverMailgun = "mailgun"
	DriverSMTP    = "smtp"
)

// NewDriver builds the configured transport. An unknown driver name is a
// configuration error, caught before anything is sent.
func NewDriver(cfg Config) (Driver, error) {
	switch cfg.Driver {
	case DriverMailgun:
		return newMailgun(cfg)
	case DriverSMTP:
		return newSMTP(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown mail driver %q", domain.ErrInvalidParameter, cfg.Driver)
	}
}
