package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sjsage522/catalogworker/pkg/errors"
)

// BrandTarget is one entry of the brand list: a display name and its listing page
type BrandTarget struct {
	Name string `json:"brand"`
	URL  string `json:"url"`
}

type priceKind uint8

const (
	priceNull priceKind = iota
	priceNumber
	priceText
)

// Price is either absent, a parsed number, or the raw text left over when the
// displayed price could not be read as a number.
type Price struct {
	kind   priceKind
	number float64
	text   string
}

// NullPrice returns the absent price
func NullPrice() Price { return Price{} }

// NumberPrice returns a numeric price
func NumberPrice(v float64) Price { return Price{kind: priceNumber, number: v} }

// TextPrice returns a price that is kept as text
func TextPrice(s string) Price { return Price{kind: priceText, text: s} }

var (
	priceSymbols = strings.NewReplacer("$", "", "£", "", "€", "", ",", "")
	decimalPrice = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// ParsePrice strips currency symbols and thousands separators from a displayed
// price. An empty remainder yields the null price and a plain decimal remainder
// a number. Anything else is kept as the stripped text.
func ParsePrice(raw string) Price {
	cleaned := strings.TrimSpace(priceSymbols.Replace(raw))
	if cleaned == "" {
		return NullPrice()
	}
	if decimalPrice.MatchString(cleaned) {
		if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return NumberPrice(v)
		}
	}
	return TextPrice(cleaned)
}

// IsNull reports whether the price is absent
func (p Price) IsNull() bool { return p.kind == priceNull }

// Number returns the numeric value when the price is a number
func (p Price) Number() (float64, bool) { return p.number, p.kind == priceNumber }

// Text returns the raw text when the price could not be parsed
func (p Price) Text() (string, bool) { return p.text, p.kind == priceText }

// Equal compares both the kind and the value
func (p Price) Equal(o Price) bool {
	if p.kind != o.kind {
		return false
	}
	switch p.kind {
	case priceNumber:
		return p.number == o.number
	case priceText:
		return p.text == o.text
	default:
		return true
	}
}

// Value returns nil, a float64 or a string, for drivers that store dynamic values
func (p Price) Value() interface{} {
	switch p.kind {
	case priceNumber:
		return p.number
	case priceText:
		return p.text
	default:
		return nil
	}
}

// PriceFromValue is the inverse of Value. Integer kinds returned by drivers are widened to float64.
func PriceFromValue(v interface{}) Price {
	switch t := v.(type) {
	case nil:
		return NullPrice()
	case float64:
		return NumberPrice(t)
	case float32:
		return NumberPrice(float64(t))
	case int:
		return NumberPrice(float64(t))
	case int32:
		return NumberPrice(float64(t))
	case int64:
		return NumberPrice(float64(t))
	case string:
		return TextPrice(t)
	default:
		return TextPrice(fmt.Sprint(t))
	}
}

func (p Price) String() string {
	switch p.kind {
	case priceNumber:
		return strconv.FormatFloat(p.number, 'f', -1, 64)
	case priceText:
		return p.text
	default:
		return "null"
	}
}

// MarshalJSON writes null, a JSON number or a JSON string
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value())
}

// UnmarshalJSON accepts null, a JSON number or a JSON string
func (p *Price) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = NullPrice()
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*p = TextPrice(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return fmt.Errorf("price must be null, a number or a string: %w", err)
	}
	*p = NumberPrice(v)
	return nil
}

// Spec is one row of the specifications table, in page order
type Spec struct {
	Name  string
	Value string
}

// MarshalJSON writes the row as a single-key object {name: value}
func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{s.Name: s.Value})
}

// UnmarshalJSON reads a single-key object {name: value}
func (s *Spec) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("specification entry must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		s.Name, s.Value = k, v
	}
	return nil
}

// ProductRecord is the normalized record extracted from one product page.
// JSON keys follow the snapshot and store column names.
type ProductRecord struct {
	URL            string   `json:"url"`
	Title          string   `json:"Title"`
	Price          Price    `json:"Price"`
	Brand          string   `json:"brand"`
	PrimaryImage   string   `json:"Image"`
	OtherImages    []string `json:"Other_image"`
	ExternalID     string   `json:"Id"`
	Model          string   `json:"Model"`
	CategoryPath   []string `json:"category"`
	Description    string   `json:"Description"`
	Specifications []Spec   `json:"Specifications"`
}

type productRecordJSON ProductRecord

// MarshalJSON always writes list fields as arrays
func (r ProductRecord) MarshalJSON() ([]byte, error) {
	out := productRecordJSON(r)
	if out.OtherImages == nil {
		out.OtherImages = []string{}
	}
	if out.CategoryPath == nil {
		out.CategoryPath = []string{}
	}
	if out.Specifications == nil {
		out.Specifications = []Spec{}
	}
	return json.Marshal(out)
}

// Validate checks the one field every record must carry
func (r ProductRecord) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.NewValidation("record", "product record has no url")
	}
	return nil
}
