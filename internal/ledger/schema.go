package ledger

import (
	"encoding/json"
	"strings"
	"time"
)

// Envelope is the transport wrapper for one encrypted event.
type Envelope struct {
	Timestamp     string `json:"timestamp"`
	EncryptedData string `json:"encryptedData"`
}

// Validate checks the envelope fields and parses the timestamp. Failures are
// BadRequest with field-level detail.
func (e Envelope) Validate() (time.Time, *Error) {
	fields := map[string]string{}
	var ts time.Time
	if strings.TrimSpace(e.Timestamp) == "" {
		fields["timestamp"] = "required"
	} else {
		parsed, err := parseTimestamp(e.Timestamp)
		if err != nil {
			fields["timestamp"] = "invalid date string"
		} else {
			ts = parsed
		}
	}
	if e.EncryptedData == "" {
		fields["encryptedData"] = "required"
	}
	if len(fields) > 0 {
		detail, _ := json.Marshal(fields)
		return time.Time{}, badRequestf("Invalid request format: %s", detail)
	}
	return ts, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, err
}

// TransactionFormData is the decrypted payload schema.
type TransactionFormData struct {
	Type   string   `json:"type"`
	Amount *float64 `json:"amount"`
	Price  *float64 `json:"price"`
	Fee    *float64 `json:"fee"`
	Wallet *string  `json:"wallet"`
	Tags   []string `json:"tags"`
	Notes  *string  `json:"notes"`
}

// ParseFormData decodes and validates a decrypted payload. Failures are
// BadRequest with field-level detail.
func ParseFormData(plaintext string) (*TransactionFormData, *Error) {
	var form TransactionFormData
	if err := json.Unmarshal([]byte(plaintext), &form); err != nil {
		return nil, badRequestf("Invalid transaction data: %v", err)
	}

	fields := map[string]string{}
	if strings.TrimSpace(form.Type) == "" {
		fields["type"] = "required"
	}
	if form.Amount == nil {
		fields["amount"] = "required"
	} else if *form.Amount <= 0 {
		fields["amount"] = "must be positive"
	}
	if form.Price != nil && *form.Price < 0 {
		fields["price"] = "must not be negative"
	}
	if form.Fee != nil && *form.Fee < 0 {
		fields["fee"] = "must not be negative"
	}
	if len(fields) > 0 {
		detail, _ := json.Marshal(fields)
		return nil, badRequestf("Invalid transaction data: %s", detail)
	}
	return &form, nil
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

func isInterestNote(notes *string) bool {
	return notes != nil && strings.Contains(strings.ToLower(*notes), "interest")
}
