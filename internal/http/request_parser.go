// Package http serves the fintrack pages on top of the screen containers.
//
// This file implements utilities for parsing and validating HTTP request data.
// It supports both JSON bodies, sent by the page script, and form-encoded
// submissions from plain forms.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/screens"
)

// maxBodyBytes caps every parsed request body.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on
// failure. Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// ParseDraft reads the add-transaction form. The kind field decides the sign.
func ParseDraft(form url.Values) screens.Draft {
	return screens.Draft{
		Description: sanitizeInput(form.Get("description")),
		Amount:      sanitizeInput(form.Get("amount")),
		Category:    sanitizeInput(form.Get("category")),
		IsIncome:    strings.EqualFold(strings.TrimSpace(form.Get("kind")), "income"),
	}
}

// ParsePlannerInput reads the FIRE form or query string.
func ParsePlannerInput(values url.Values) screens.PlannerInput {
	return screens.PlannerInput{
		CurrentAge:       sanitizeInput(values.Get("current_age")),
		AnnualIncome:     sanitizeInput(values.Get("annual_income")),
		AnnualExpense:    sanitizeInput(values.Get("annual_expense")),
		SavingsRate:      sanitizeInput(values.Get("savings_rate")),
		InvestmentReturn: sanitizeInput(values.Get("investment_return")),
		WithdrawalRate:   sanitizeInput(values.Get("withdrawal_rate")),
	}
}
