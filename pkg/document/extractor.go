// Package document turns uploaded documents into plain text.
package document

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// MediaTypePDF is the only accepted declared media type.
	MediaTypePDF = "application/pdf"

	DefaultMaxBytes = 10 * 1024 * 1024
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtractionFailed  = errors.New("document text extraction failed")
)

var tracer = otel.Tracer("ai-docchat-be/pkg/document")

// Upload is a binary payload as declared by the client.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// Result is the text of a document.
type Result struct {
	Text      string
	PageCount int
}

// Outcome is delivered once by ExtractAsync.
type Outcome struct {
	Result Result
	Err    error
}

// Pages is a decoded document whose pages are read one at a time.
type Pages interface {
	NumPage() int
	// Fragments returns the text fragments of page n (1-based) in reading order.
	Fragments(n int) ([]string, error)
}

// Decoder parses raw bytes into pages.
type Decoder func(data []byte) (Pages, error)

type Extractor struct {
	decode   Decoder
	maxBytes int
}

func NewExtractor(maxBytes int) *Extractor {
	return NewExtractorWithDecoder(DecodePDF, maxBytes)
}

func NewExtractorWithDecoder(decode Decoder, maxBytes int) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{decode: decode, maxBytes: maxBytes}
}

// Supports reports whether a declared media type can be extracted.
func Supports(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return mt == MediaTypePDF
}

// Extract validates the declared type and returns the document text: the
// fragments of a page joined by a space, pages joined by a newline, trimmed.
func (e *Extractor) Extract(ctx context.Context, up Upload) (Result, error) {
	if !Supports(up.MediaType) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, up.MediaType)
	}

	ctx, span := tracer.Start(ctx, "document.extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.name", up.Name),
		attribute.Int("document.bytes", len(up.Data)),
	)

	res, err := e.extract(ctx, up.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("document.pages", res.PageCount))
	return res, nil
}

// ExtractAsync runs Extract on its own goroutine. The channel receives exactly
// one Outcome and is then closed.
func (e *Extractor) ExtractAsync(ctx context.Context, up Upload) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := e.Extract(ctx, up)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

func (e *Extractor) extract(ctx context.Context, data []byte) (res Result, err error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty payload", ErrExtractionFailed)
	}
	if len(data) > e.maxBytes {
		return Result{}, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrExtractionFailed, len(data), e.maxBytes)
	}

	// the pdf decoder reports some malformed streams by panicking
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("%w: %v", ErrExtractionFailed, r)
		}
	}()

	pages, err := e.decode(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	n := pages.NumPage()
	texts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
		fragments, err := pages.Fragments(i)
		if err != nil {
			return Result{}, fmt.Errorf("%w: page %d: %w", ErrExtractionFailed, i, err)
		}
		texts = append(texts, strings.Join(fragments, " "))
	}

	return Result{
		Text:      strings.TrimSpace(strings.Join(texts, "\n")),
		PageCount: n,
	}, nil
}
