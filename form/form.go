// Package form holds the twelve-month production form: slot values, the
// touched set, coercion of raw input and the submit cycle that talks to the
// prediction service.
package form

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

// SlotCount is the number of monthly slots on the form.
const SlotCount = 12

// MonthNames labels the slots in chronological order.
var MonthNames = [SlotCount]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// SeedInputs are the production figures (millions of gallons) a new form starts with.
var SeedInputs = [SlotCount]float64{
	110.5, 115.2, 112.3, 118.0, 120.5, 125.3,
	123.1, 128.6, 130.7, 129.4, 131.0, 132.5,
}

// User-facing messages. The underlying failure detail is never shown.
const (
	ValidationMessage    = "❗ Please enter valid numbers for all 12 months."
	RequestFailedMessage = "🚫 Failed to fetch prediction. Please try again."
)

var (
	ErrValidation     = errors.New("all 12 months must contain valid numbers")
	ErrRequest        = errors.New("prediction request failed")
	ErrSlotOutOfRange = errors.New("slot index out of range")
)

// Inputs are the raw slot values exactly as typed.
type Inputs [SlotCount]string

// SeedFrom renders numeric seed values into raw slot strings.
func SeedFrom(values [SlotCount]float64) Inputs {
	var in Inputs
	for i, v := range values {
		in[i] = FormatNumber(v)
	}
	return in
}

// FormatNumber renders v in its shortest decimal form (118.0 -> "118").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// decimalLiteral is plain decimal notation with an optional exponent. Go
// literal forms that ParseFloat also takes (digit underscores, hex floats)
// do not match.
var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Coerce converts a raw slot value to a finite number. Surrounding
// whitespace is ignored and full-width digits are folded to ASCII.
// Empty strings, non-decimal notation, NaN and infinities are rejected.
func Coerce(raw string) (float64, bool) {
	s := strings.TrimSpace(width.Narrow.String(raw))
	if !decimalLiteral.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Validate coerces every slot, preserving order. It fails on the first slot
// that is not a number.
func Validate(in Inputs) ([]float64, error) {
	numbers := make([]float64, SlotCount)
	for i, raw := range in {
		v, ok := Coerce(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %q", ErrValidation, MonthNames[i], raw)
		}
		numbers[i] = v
	}
	return numbers, nil
}

// FormatPrediction rounds a forecast to two decimal places. A negative
// value that rounds to zero keeps its sign ("-0.00").
func FormatPrediction(v float64) string {
	rounded := decimal.NewFromFloat(v).Round(2)
	if v < 0 && rounded.IsZero() {
		return "-0.00"
	}
	return rounded.StringFixed(2)
}

// State is a point-in-time copy of a session.
type State struct {
	Inputs     Inputs `json:"inputs"`
	Touched    []int  `json:"touched"`
	Error      string `json:"error,omitempty"`
	Prediction string `json:"prediction,omitempty"`
	Loading    bool   `json:"loading"`
}

// IsTouched reports whether slot i has been edited.
func (s State) IsTouched(i int) bool {
	idx := sort.SearchInts(s.Touched, i)
	return idx < len(s.Touched) && s.Touched[idx] == i
}

// Invalid reports whether slot i should be flagged in the UI. It has no
// effect on submission.
func (s State) Invalid(i int) bool {
	if i < 0 || i >= SlotCount || !s.IsTouched(i) {
		return false
	}
	_, ok := Coerce(s.Inputs[i])
	return !ok
}

// InvalidSlots returns the Invalid flag for every slot.
func (s State) InvalidSlots() [SlotCount]bool {
	var flags [SlotCount]bool
	for i := range flags {
		flags[i] = s.Invalid(i)
	}
	return flags
}

// Banner renders the forecast for display, or "" when there is none.
func (s State) Banner() string {
	if s.Prediction == "" {
		return ""
	}
	return s.Prediction + "M gallons"
}
