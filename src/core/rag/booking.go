package rag

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"ragdesk/src/log"
)

const (
	unknownField = "Unknown"
	pendingField = "TBD"
)

var bookingKeywords = []string{"book", "schedule", "interview", "appointment"}

var (
	bookingName  = regexp.MustCompile(`(?i)name\s+is\s+(\w+)`)
	bookingEmail = regexp.MustCompile(`[\w.-]+@[\w.-]+`)
	bookingDate  = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
	bookingTime  = regexp.MustCompile(`(\d{1,2}:\d{2})`)
	jsonObject   = regexp.MustCompile(`(?s)\{.*\}`)
)

type bookingFields struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// IsBookingRequest reports whether a query asks to book or schedule something.
func IsBookingRequest(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range bookingKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// ParseBooking extracts name, email, date and time from a query with the LLM,
// falling back to regular expressions when the model fails or answers with
// something that is not a JSON object.
func ParseBooking(ctx context.Context, generator Generator, query string) Booking {
	if generator == nil {
		return parseBookingFallback(query)
	}

	prompt, err := renderPrompt("booking", BookingPromptTmpl, struct{ Query string }{Query: query})
	if err != nil {
		log.Error(err, "failed to render booking prompt")
		return parseBookingFallback(query)
	}

	text, err := generator.Generate(ctx, prompt)
	if err != nil {
		log.Error(err, "booking extraction failed, using fallback parser")
		return parseBookingFallback(query)
	}

	fields, ok := decodeBookingFields(text)
	if !ok {
		log.Debug("booking extraction returned no JSON object", "response", text)
		return parseBookingFallback(query)
	}

	return Booking{
		Name:  defaultIfEmpty(fields.Name, unknownField),
		Email: defaultIfEmpty(fields.Email, unknownField),
		Date:  defaultIfEmpty(fields.Date, pendingField),
		Time:  defaultIfEmpty(fields.Time, pendingField),
	}
}

func decodeBookingFields(text string) (bookingFields, bool) {
	var fields bookingFields
	text = strings.TrimSpace(text)
	if text == "" {
		return fields, false
	}
	if m := jsonObject.FindString(text); m != "" {
		text = m
	}
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return fields, false
	}
	return fields, true
}

func parseBookingFallback(query string) Booking {
	b := Booking{
		Name:  unknownField,
		Email: unknownField,
		Date:  pendingField,
		Time:  pendingField,
	}
	if m := bookingName.FindStringSubmatch(query); m != nil {
		b.Name = m[1]
	}
	if m := bookingEmail.FindString(query); m != "" {
		b.Email = m
	}
	if m := bookingDate.FindStringSubmatch(query); m != nil {
		b.Date = m[1]
	}
	if m := bookingTime.FindStringSubmatch(query); m != nil {
		b.Time = m[1]
	}
	return b
}

func defaultIfEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
