// Package email composes and sends grocery list exports as
// multipart/alternative messages with both plain text and HTML parts.
package email

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"

	"github.com/ladle-app/ladle/internal/grocery"
)

// ComposeOptions holds everything needed to build a complete RFC 5322
// message. Body is markdown; it is rendered to both text/plain and
// text/html parts.
type ComposeOptions struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// GroceryListBody renders a grocery list as markdown: open items as a
// checklist, bought items struck through at the bottom.
func GroceryListBody(list *grocery.List) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", list.Name)

	var bought []grocery.Item
	for _, item := range list.Items {
		if item.Checked {
			bought = append(bought, item)
			continue
		}
		b.WriteString("- ")
		b.WriteString(formatItem(item))
		b.WriteString("\n")
	}

	if len(bought) > 0 {
		b.WriteString("\nAlready bought:\n\n")
		for _, item := range bought {
			fmt.Fprintf(&b, "- ~~%s~~\n", formatItem(item))
		}
	}
	return b.String()
}

func formatItem(item grocery.Item) string {
	switch {
	case item.Quantity == 0:
		return item.Name
	case item.Unit == "":
		return fmt.Sprintf("%s %s", trimFloat(item.Quantity), item.Name)
	default:
		return fmt.Sprintf("%s %s %s", trimFloat(item.Quantity), item.Unit, item.Name)
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// ComposeMessage builds a complete MIME message with multipart
// text/plain and text/html renderings of the markdown body.
func ComposeMessage(opts ComposeOptions) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(opts.Subject)

	from, err := mail.ParseAddress(opts.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", opts.From, err)
	}
	h.SetAddressList("From", []*mail.Address{from})

	toAddrs := make([]*mail.Address, 0, len(opts.To))
	for _, a := range opts.To {
		parsed, err := mail.ParseAddress(a)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", a, err)
		}
		toAddrs = append(toAddrs, parsed)
	}
	h.SetAddressList("To", toAddrs)

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline writer: %w", err)
	}

	var ph mail.InlineHeader
	ph.Set("Content-Type", "text/plain; charset=utf-8")
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return nil, fmt.Errorf("create plain text part: %w", err)
	}
	if _, err := io.WriteString(pw, markdownToPlain(opts.Body)); err != nil {
		return nil, fmt.Errorf("write plain text: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("close plain text part: %w", err)
	}

	htmlContent, err := markdownToHTML(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("render markdown to HTML: %w", err)
	}

	var hh mail.InlineHeader
	hh.Set("Content-Type", "text/html; charset=utf-8")
	hw, err := tw.CreatePart(hh)
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	if _, err := io.WriteString(hw, htmlContent); err != nil {
		return nil, fmt.Errorf("write html: %w", err)
	}
	if err := hw.Close(); err != nil {
		return nil, fmt.Errorf("close html part: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}

	return buf.Bytes(), nil
}

// markdownToHTML renders markdown into a minimal self-contained HTML
// envelope with no external resources.
func markdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
%s
</body></html>`, buf.String())

	return html, nil
}

var (
	mdBold    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdStrike  = regexp.MustCompile(`~~(.+?)~~`)
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)
)

// markdownToPlain strips formatting while keeping list structure, which
// reads fine as plain text.
func markdownToPlain(md string) string {
	s := mdStrike.ReplaceAllString(md, "$1 (bought)")
	s = mdBold.ReplaceAllString(s, "$1")
	s = mdHeading.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
