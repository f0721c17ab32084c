package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	pages   [][]string
	failAt  int
	panicAt int
}

func (f *fakePages) NumPage() int { return len(f.pages) }

func (f *fakePages) Fragments(n int) ([]string, error) {
	if n == f.panicAt {
		panic("malformed content stream")
	}
	if n == f.failAt {
		return nil, errors.New("unsupported encoding")
	}
	return f.pages[n-1], nil
}

func decoderFor(pages *fakePages) Decoder {
	return func(data []byte) (Pages, error) { return pages, nil }
}

var somePDF = Upload{Name: "doc.pdf", MediaType: MediaTypePDF, Data: []byte("%PDF-1.4")}

func TestExtractor_JoinsFragmentsAndPages(t *testing.T) {
	tests := []struct {
		name  string
		pages [][]string
		want  string
	}{
		{name: "fragments by space, pages by newline", pages: [][]string{{"a", "b"}, {"c"}}, want: "a b\nc"},
		{name: "single fragment pages", pages: [][]string{{"a b"}, {"c"}}, want: "a b\nc"},
		{name: "outer whitespace trimmed", pages: [][]string{{"  lead"}, {"trail  "}, {}}, want: "lead\ntrail"},
		{name: "no text at all", pages: [][]string{{}, {}}, want: ""},
		{name: "no pages", pages: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := &fakePages{pages: tt.pages}
			e := NewExtractorWithDecoder(decoderFor(pages), 0)

			res, err := e.Extract(context.Background(), somePDF)

			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, len(tt.pages), res.PageCount)
		})
	}
}

func TestExtractor_RejectsUnsupportedTypesBeforeParsing(t *testing.T) {
	decoded := false
	e := NewExtractorWithDecoder(func(data []byte) (Pages, error) {
		decoded = true
		return &fakePages{}, nil
	}, 0)

	for _, mt := range []string{"text/plain", "image/png", "", "application/pdfx", "not a media type"} {
		t.Run(mt, func(t *testing.T) {
			_, err := e.Extract(context.Background(), Upload{Name: "x", MediaType: mt, Data: []byte("x")})
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
	assert.False(t, decoded)
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports("application/pdf"))
	assert.True(t, Supports("Application/PDF"))
	assert.True(t, Supports("application/pdf; name=report.pdf"))
	assert.False(t, Supports("application/octet-stream"))
}

func TestExtractor_Failures(t *testing.T) {
	tests := []struct {
		name   string
		upload Upload
		pages  *fakePages
		decErr error
	}{
		{name: "decoder error", upload: somePDF, decErr: errors.New("not a PDF file")},
		{name: "page error", upload: somePDF, pages: &fakePages{pages: [][]string{{"a"}, {"b"}}, failAt: 2}},
		{name: "page panic", upload: somePDF, pages: &fakePages{pages: [][]string{{"a"}}, panicAt: 1}},
		{name: "empty payload", upload: Upload{Name: "e.pdf", MediaType: MediaTypePDF}},
		{name: "oversized payload", upload: Upload{Name: "big.pdf", MediaType: MediaTypePDF, Data: make([]byte, 11)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractorWithDecoder(func(data []byte) (Pages, error) {
				if tt.decErr != nil {
					return nil, tt.decErr
				}
				if tt.pages == nil {
					return &fakePages{}, nil
				}
				return tt.pages, nil
			}, 10)

			res, err := e.Extract(context.Background(), tt.upload)

			assert.ErrorIs(t, err, ErrExtractionFailed)
			assert.Empty(t, res.Text)
		})
	}
}

func TestExtractor_CancelledContext(t *testing.T) {
	e := NewExtractorWithDecoder(decoderFor(&fakePages{pages: [][]string{{"a"}}}), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, somePDF)

	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractor_RealDecoderRejectsGarbage(t *testing.T) {
	e := NewExtractor(0)

	_, err := e.Extract(context.Background(), Upload{
		Name:      "fake.pdf",
		MediaType: MediaTypePDF,
		Data:      []byte("this is definitely not a pdf"),
	})

	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractor_ExtractAsync(t *testing.T) {
	e := NewExtractorWithDecoder(decoderFor(&fakePages{pages: [][]string{{"a b"}, {"c"}}}), 0)

	ch := e.ExtractAsync(context.Background(), somePDF)

	out, ok := <-ch
	require.True(t, ok)
	require.NoError(t, out.Err)
	assert.Equal(t, "a b\nc", out.Result.Text)

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the single outcome")
}
