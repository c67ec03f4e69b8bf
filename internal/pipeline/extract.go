package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"rsc.io/pdf"
)

var errUnsupportedContentType = errors.New("unsupported content type")

type extractedContent struct {
	Title       string
	Text        string
	PublishedAt time.Time
}

func extractContent(contentType string, body []byte, maxRunes int) (extractedContent, error) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, parseErr := mime.ParseMediaType(mediaType); parseErr == nil {
		mediaType = parsed
	}

	var out extractedContent
	var err error
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		out, err = extractHTMLContent(body)
	case "text/plain", "text/markdown", "text/csv":
		out.Text = normalizeExtractedText(string(body))
	case "application/json":
		out.Text, err = extractJSONText(body)
	case "application/pdf":
		out.Text, err = extractPDFTextFromBody(body)
	default:
		if strings.HasPrefix(mediaType, "text/") {
			out.Text = normalizeExtractedText(string(body))
			break
		}
		return extractedContent{}, errUnsupportedContentType
	}
	if err != nil {
		return extractedContent{}, err
	}
	out.Title = trimToRunes(strings.TrimSpace(out.Title), 240)
	out.Text = trimToRunes(normalizeExtractedText(out.Text), maxRunes)
	return out, nil
}

// extractHTMLContent pulls the title, the visible text, and any publication
// date the page advertises in its meta tags.
func extractHTMLContent(data []byte) (extractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return extractedContent{}, err
	}

	out := extractedContent{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	for _, selector := range []string{
		`meta[property="article:published_time"]`,
		`meta[name="date"]`,
		`meta[name="dc.date"]`,
		`meta[itemprop="datePublished"]`,
	} {
		if value, ok := doc.Find(selector).First().Attr("content"); ok {
			if published, parsed := parsePublishedDate(value); parsed {
				out.PublishedAt = published
				break
			}
		}
	}

	doc.Find("script, style, noscript, svg, iframe, head").Remove()
	var builder strings.Builder
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		builder.WriteString(body.Text())
	})
	if builder.Len() == 0 {
		builder.WriteString(doc.Text())
	}
	out.Text = normalizeExtractedText(builder.String())
	return out, nil
}

func extractJSONText(data []byte) (string, error) {
	if !json.Valid(data) {
		return normalizeExtractedText(string(data)), nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return "", err
	}
	return normalizeExtractedText(pretty.String()), nil
}

func extractPDFTextFromBody(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	runeCount := 0
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content := page.Content()
		for _, item := range content.Text {
			chunk := strings.TrimSpace(item.S)
			if chunk == "" {
				continue
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteByte('\n')
				runeCount++
			}
			textBuilder.WriteString(chunk)
			runeCount += utf8.RuneCountInString(chunk)
			if runeCount >= 220_000 {
				return trimToRunes(textBuilder.String(), 220_000), nil
			}
		}
	}

	return normalizeExtractedText(textBuilder.String()), nil
}

func normalizeExtractedText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ToValidUTF8(normalized, "")

	lines := strings.Split(normalized, "\n")
	compact := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		compact = append(compact, strings.Join(strings.Fields(trimmed), " "))
	}
	return strings.TrimSpace(strings.Join(compact, "\n"))
}
