package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/treasuryops/payout-reconciler/internal/export"
	"github.com/treasuryops/payout-reconciler/internal/gocardless"
	"github.com/treasuryops/payout-reconciler/internal/mail"
	"github.com/treasuryops/payout-reconciler/internal/reconcile"
)

func main() {
	log := logrus.StandardLogger()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, relying on system env")
	}

	client, err := gocardless.New(gocardless.Config{
		Token:       os.Getenv("GC_ACCESS_TOKEN"),
		Environment: os.Getenv("GC_ENVIRONMENT"),
	})
	if err != nil {
		log.Fatalf("gocardless client: %v", err)
	}

	output := envDefault("RECONCILE_OUTPUT", "export.xlsx")
	sink, err := newSink(output)
	if err != nil {
		log.Fatalf("export sink: %v", err)
	}

	opts := reconcile.Options{
		API:        client,
		Sink:       sink,
		Window:     envDefault("RECONCILE_WINDOW", "month"),
		OutputPath: output,
		Columns:    splitList(os.Getenv("RECONCILE_COLUMNS")),
		Headings:   splitList(os.Getenv("RECONCILE_HEADINGS")),
		Logger:     log,
	}

	if driver := os.Getenv("MAIL_DRIVER"); driver != "" {
		mailer, err := mail.NewDriver(mail.Config{
			Driver:   driver,
			APIHost:  os.Getenv("MAILGUN_API"),
			Domain:   os.Getenv("MAILGUN_DOMAIN"),
			Key:      os.Getenv("MAILGUN_KEY"),
			Hostname: os.Getenv("SMTP_HOSTNAME"),
			Port:     envInt("SMTP_PORT"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			StartTLS: os.Getenv("SMTP_STARTTLS") == "true",
		})
		if err != nil {
			log.Fatalf("mail driver: %v", err)
		}
		opts.Mailer = mailer
		opts.From = os.Getenv("MAIL_FROM")
		opts.To = splitList(os.Getenv("MAIL_TO"))
		opts.CC = splitList(os.Getenv("MAIL_CC"))
		opts.BCC = splitList(os.Getenv("MAIL_BCC"))
	}

	r, err := reconcile.New(opts)
	if err != nil {
		log.Fatalf("configure run: %v", err)
	}

	if err := r.Reconcile(); err != nil {
		log.Fatalf("reconcile: %v", err)
	}
	if err := r.Export(); err != nil {
		log.Fatalf("export: %v", err)
	}

	if opts.Mailer != nil {
		keep := os.Getenv("MAIL_KEEP_EXPORT") == "true"
		if err := r.Send(keep); err != nil {
			log.Fatalf("send: %v", err)
		}
	}
}

// newSink picks the artifact format from the output file extension.
func newSink(path string) (export.Sink, error) {
	switch ext := filepath.Ext(path); ext {
	case ".xlsx":
		return export.NewXLSX()
	case ".db", ".sqlite":
		return export.NewSQLite()
	default:
		return nil, fmt.Errorf("unsupported output extension %q", ext)
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
