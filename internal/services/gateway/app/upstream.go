package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// StatusError is a non-2xx answer from an upstream.
type StatusError struct {
	Upstream string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s upstream status %d: %s", e.Upstream, e.Code, e.Message)
	}
	return fmt.Sprintf("%s upstream status %d", e.Upstream, e.Code)
}

// ErrNotConfigured: upstream opzionale senza base URL.
var ErrNotConfigured = errors.New("upstream not configured")

// FormField is one text part of a multipart body; order is preserved.
type FormField struct {
	Name  string
	Value string
}

// FormFile is the single file part of a multipart body.
type FormFile struct {
	Field    string
	Filename string
	Data     []byte
}

// Upstream incapsula chiamate HTTP con Circuit Breaker
type Upstream struct {
	base    string
	path    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	name    string
}

// NewUpstream costruisce un client verso un servizio a monte
func NewUpstream(name, base, path string, timeout time.Duration, breaker *gobreaker.CircuitBreaker) *Upstream {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	return &Upstream{
		base:    base,
		path:    path,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		name:    name,
	}
}

func (u *Upstream) Name() string { return u.name }

func (u *Upstream) Configured() bool { return u != nil && u.base != "" }

func (u *Upstream) State() gobreaker.State { return u.breaker.State() }

// PostMultipart sends fields (+ optional file) as multipart/form-data and
// decodes the JSON answer into out.
func (u *Upstream) PostMultipart(ctx context.Context, fields []FormField, file *FormFile, out any) error {
	if !u.Configured() {
		return ErrNotConfigured
	}

	body, contentType, err := encodeMultipart(fields, file)
	if err != nil {
		return fmt.Errorf("%s encode error: %w", u.name, err)
	}

	_, err = u.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.base+u.path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		resp, err := u.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request error: %w", u.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Upstream: u.name, Code: resp.StatusCode, Message: errorMessage(resp.Body)}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s decode error: %w", u.name, err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s breaker open: %w", u.name, err)
	}
	return err
}

func encodeMultipart(fields []FormField, file *FormFile) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return nil, "", err
		}
	}
	if file != nil && len(file.Data) > 0 {
		fw, err := mw.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// errorMessage estrae {"error": "..."} se presente.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return e.Error
	}
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
