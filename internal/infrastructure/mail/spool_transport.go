package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	netmail "net/mail"
	"time"

	"github.com/shopkit/backend/internal/domain/customer"
)

// ObjectWriter stores spool files. storage.S3ObjectStorage satisfies it.
type ObjectWriter interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// S3SpoolTransport writes every message as an RFC 5322 .eml object into a
// spool bucket that a mail relay drains. The object name is derived from
// the message id, so a redelivered message overwrites its earlier copy.
type S3SpoolTransport struct {
	writer ObjectWriter
	domain string
	now    func() time.Time
}

// NewS3SpoolTransport creates a spool transport. domain is used on the
// right-hand side of generated Message-ID headers.
func NewS3SpoolTransport(writer ObjectWriter, domain string) *S3SpoolTransport {
	if domain == "" {
		domain = "shopkit.local"
	}
	return &S3SpoolTransport{writer: writer, domain: domain, now: time.Now}
}

// Send encodes msg and writes it to the spool
func (t *S3SpoolTransport) Send(ctx context.Context, msg customer.Message) error {
	if msg.ID == "" {
		return errors.New("mail message id is required")
	}
	now := t.now().UTC()
	raw, err := t.Encode(msg, now)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s/%s.eml", now.Format("2006/01/02"), msg.ID)
	if err := t.writer.Put(ctx, name, raw, "message/rfc822"); err != nil {
		return fmt.Errorf("spool message %s: %w", msg.ID, err)
	}
	return nil
}

// Encode renders msg as a single-part text/plain RFC 5322 message
func (t *S3SpoolTransport) Encode(msg customer.Message, date time.Time) ([]byte, error) {
	from, err := netmail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", msg.From, err)
	}
	to, err := netmail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", msg.To, err)
	}

	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", msg.ID, t.domain))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(msg.Body)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ customer.MailTransport = (*S3SpoolTransport)(nil)
