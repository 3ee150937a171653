// Package extract turns bank notification messages into card purchases using
// a language model.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/calendar"
	"github.com/dvloznov/card-ledger/internal/money"
	"github.com/shopspring/decimal"
)

// ErrNotAPurchase is returned when the message does not describe a purchase.
var ErrNotAPurchase = errors.New("message is not a card purchase")

// Purchase is one card purchase read from a message. Amount is the purchase
// total, never the per-installment value.
type Purchase struct {
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Date         civil.Date      `json:"date"`
	Installments int             `json:"installments"`
	CardHint     string          `json:"card_hint,omitempty"`
}

const purchasePrompt = "You read bank and card notification SMS messages.\n\n" +
	"Task:\n" +
	"- Decide whether the message reports a card purchase.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a single JSON object.\n\n" +
	"The object must have these fields:\n" +
	"- \"is_purchase\": boolean\n" +
	"- \"description\": string, the merchant or purchase description\n" +
	"- \"amount\": the TOTAL purchase amount as written in the message (number or string)\n" +
	"- \"date\": string \"YYYY-MM-DD\" or null when the message has no date\n" +
	"- \"installments\": number of installments, 1 when paid at once\n" +
	"- \"card_hint\": string with the card name or last digits, or null\n\n" +
	"Rules:\n" +
	"- If the message shows \"10x de R$ 50,00\", the amount is 500.00 and installments is 10.\n" +
	"- Do NOT include the installment marker in the description.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n\n" +
	"Message:\n"

// Extractor reads purchases from messages.
type Extractor struct {
	model Model
}

// NewExtractor creates an Extractor using model.
func NewExtractor(model Model) *Extractor {
	return &Extractor{model: model}
}

// ExtractPurchase asks the model to read message. A message without a date
// is dated today.
func (e *Extractor) ExtractPurchase(ctx context.Context, message string, today civil.Date) (*Purchase, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("ExtractPurchase: empty message")
	}

	raw, err := e.model.Generate(ctx, purchasePrompt+message)
	if err != nil {
		return nil, fmt.Errorf("ExtractPurchase: %w", err)
	}

	p, err := ParsePurchase(raw, today)
	if err != nil {
		return nil, fmt.Errorf("ExtractPurchase: %w", err)
	}
	return p, nil
}

// ParsePurchase validates the model's JSON answer.
func ParsePurchase(raw string, today civil.Date) (*Purchase, error) {
	clean := cleanModelJSON(raw)

	var m map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &m); err != nil {
		return nil, fmt.Errorf("ParsePurchase: unmarshal JSON: %w", err)
	}

	if isPurchase, ok := m["is_purchase"].(bool); ok && !isPurchase {
		return nil, ErrNotAPurchase
	}

	desc, err := getStringField(m, "description", true)
	if err != nil {
		return nil, fmt.Errorf("ParsePurchase: %w", err)
	}

	amount, err := getAmountField(m, "amount")
	if err != nil {
		return nil, fmt.Errorf("ParsePurchase: %w", err)
	}
	amount = money.RoundCents(amount.Abs())
	if !amount.IsPositive() {
		return nil, fmt.Errorf("ParsePurchase: amount %s is not positive", amount)
	}

	date := today
	dateStr, err := getOptionalStringField(m, "date")
	if err != nil {
		return nil, fmt.Errorf("ParsePurchase: %w", err)
	}
	if dateStr != nil {
		date, err = calendar.ParseDate(*dateStr)
		if err != nil {
			return nil, fmt.Errorf("ParsePurchase: %w", err)
		}
	}

	count := 1
	n, err := getOptionalFloat64Field(m, "installments")
	if err != nil {
		return nil, fmt.Errorf("ParsePurchase: %w", err)
	}
	if n != nil {
		if *n < 1 || *n != math.Trunc(*n) {
			return nil, fmt.Errorf("ParsePurchase: installments %v is not a positive integer", *n)
		}
		count = int(*n)
	}

	hint, err := getOptionalStringField(m, "card_hint")
	if err != nil {
		return nil, fmt.Errorf("ParsePurchase: %w", err)
	}

	p := &Purchase{
		Description:  strings.TrimSpace(desc),
		Amount:       amount,
		Date:         date,
		Installments: count,
	}
	if hint != nil {
		p.CardHint = *hint
	}
	return p, nil
}

// cleanModelJSON strips Markdown fences and text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}

// getAmountField accepts a JSON number or a formatted string such as "R$ 1.234,56".
func getAmountField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		d, err := money.ParseAmount(val)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number or string", key, v)
	}
}
