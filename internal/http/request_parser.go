// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data.
// Transaction writes arrive as multipart forms (with an optional receipt),
// urlencoded forms or JSON; all three are read through RequestBodyParser.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"moneytracker/internal/core"
)

// attachmentField is the multipart field carrying the receipt.
const attachmentField = "attachment"

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 8 << 20

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	r        *http.Request
	jsonData map[string]any
	formData url.Values
	upload   *core.Upload
	limit    int64
}

// NewRequestBodyParser creates a parser for r. limit caps the whole body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request, limit int64) *RequestBodyParser {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	return &RequestBodyParser{r: r, limit: limit}
}

// Parse reads the body once according to its Content-Type.
func (p *RequestBodyParser) Parse() error {
	mediaType, _, _ := mime.ParseMediaType(p.r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := p.r.ParseMultipartForm(multipartMemory); err != nil {
			return p.bodyError(err)
		}
		p.formData = url.Values(p.r.MultipartForm.Value)
		return p.readUpload()
	case "application/json":
		body, err := io.ReadAll(p.r.Body)
		if err != nil {
			return p.bodyError(err)
		}
		p.jsonData = make(map[string]any)
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &p.jsonData); err != nil {
			return core.NewValidationError("", "Invalid JSON body")
		}
		return nil
	default:
		body, err := io.ReadAll(p.r.Body)
		if err != nil {
			return p.bodyError(err)
		}
		p.formData, err = url.ParseQuery(string(body))
		if err != nil {
			return core.NewValidationError("", "Invalid form body")
		}
		return nil
	}
}

func (p *RequestBodyParser) bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return core.NewValidationError("", "Request body exceeds "+humanize.IBytes(uint64(p.limit)))
	}
	return core.NewValidationError("", "Invalid request body")
}

func (p *RequestBodyParser) readUpload() error {
	file, header, err := p.r.FormFile(attachmentField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return p.bodyError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return p.bodyError(err)
	}
	p.upload = &core.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}
	return nil
}

// Has reports whether key was sent at all, even empty.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	_, ok := p.formData[key]
	return ok
}

// Get returns a trimmed, sanitised value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
}

// Text returns a free-text value with control characters removed but its
// surrounding whitespace kept.
func (p *RequestBodyParser) Text(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	return sanitizeInput(p.formData.Get(key))
}

// Upload returns the receipt sent with the request, nil when none was sent.
func (p *RequestBodyParser) Upload() *core.Upload {
	return p.upload
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseDate accepts RFC 3339 timestamps, local date-times and plain dates.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, core.NewValidationError("date", fmt.Sprintf("%q is not a valid date", s))
}

// ParseNewTransaction builds a create request. Missing required fields are
// reported by NewTransaction.Validate.
func ParseNewTransaction(p *RequestBodyParser) (core.NewTransaction, error) {
	n := core.NewTransaction{
		Type:          core.TransactionType(p.Get("type")),
		Currency:      p.Get("currency"),
		Category:      p.Get("category"),
		PaymentMethod: p.Get("paymentMethod"),
		Notes:         p.Text("notes"),
	}
	if v := p.Get("amount"); v != "" {
		amount, err := core.ParseAmount(v)
		if err != nil {
			return core.NewTransaction{}, err
		}
		n.Amount = amount
	}
	if v := p.Get("date"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			return core.NewTransaction{}, err
		}
		n.Date = d
	}
	return n, nil
}

// ParseTransactionPatch builds a partial update. Blank type, category, date,
// payment method, currency and status are ignored; amount and notes apply
// whenever they are sent.
func ParseTransactionPatch(p *RequestBodyParser) (core.TransactionPatch, error) {
	var patch core.TransactionPatch

	if v := p.Get("type"); v != "" {
		t := core.TransactionType(v)
		patch.Type = &t
	}
	if p.Has("amount") {
		amount, err := core.ParseAmount(p.Get("amount"))
		if err != nil {
			return core.TransactionPatch{}, err
		}
		patch.Amount = &amount
	}
	if v := p.Get("currency"); v != "" {
		patch.Currency = &v
	}
	if v := p.Get("category"); v != "" {
		patch.Category = &v
	}
	if v := p.Get("date"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			return core.TransactionPatch{}, err
		}
		patch.Date = &d
	}
	if v := p.Get("paymentMethod"); v != "" {
		patch.PaymentMethod = &v
	}
	if p.Has("notes") {
		notes := p.Text("notes")
		patch.Notes = &notes
	}
	if v := p.Get("status"); v != "" {
		s := core.TransactionStatus(v)
		patch.Status = &s
	}
	return patch, nil
}

// ParseBudget reads a budget definition. Blank period and threshold take
// the service defaults.
func ParseBudget(p *RequestBodyParser) (core.Budget, error) {
	b := core.Budget{
		Category: p.Get("category"),
		Period:   core.BudgetPeriod(strings.ToLower(p.Get("period"))),
	}
	v := p.Get("limitAmount")
	if v == "" {
		return core.Budget{}, core.NewValidationError("", "Please provide category and limitAmount")
	}
	limit, err := core.ParseAmount(v)
	if err != nil {
		return core.Budget{}, core.NewValidationError("limitAmount", "must be a positive number with at most 2 decimal places")
	}
	b.Limit = limit
	if v := p.Get("warningThreshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.Budget{}, core.NewValidationError("warningThreshold", "must be between 1 and 100")
		}
		b.WarningThreshold = n
	}
	return b, nil
}

// ParseListQuery reads filters and paging from the query string.
func ParseListQuery(q url.Values) (core.Filter, core.Page, error) {
	page, err := core.ParsePage(q.Get("page"), q.Get("limit"))
	if err != nil {
		return core.Filter{}, core.Page{}, err
	}
	f := core.Filter{
		Type:     core.TransactionType(strings.TrimSpace(q.Get("type"))),
		Status:   core.TransactionStatus(strings.TrimSpace(q.Get("status"))),
		Category: strings.TrimSpace(q.Get("category")),
	}
	return f, page, nil
}

// ParseReportQuery reads period and anchor date; the anchor defaults to now.
func ParseReportQuery(q url.Values, now time.Time) (core.ReportPeriod, time.Time, error) {
	period, err := core.ParseReportPeriod(q.Get("period"))
	if err != nil {
		return "", time.Time{}, err
	}
	anchor := now
	if v := strings.TrimSpace(q.Get("date")); v != "" {
		if anchor, err = parseDate(v); err != nil {
			return "", time.Time{}, err
		}
	}
	return period, anchor.UTC(), nil
}
