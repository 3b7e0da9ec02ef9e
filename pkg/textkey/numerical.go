package textkey

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	decimalPattern = regexp.MustCompile(`^(0|-?[1-9][0-9]*)$`)
	hexPattern     = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
	base64Pattern  = regexp.MustCompile(`^0[bB][0-9a-zA-Z+/]+$`)
)

// NumericalValue is either a Single number or a Range of numbers.
type NumericalValue interface {
	// Min returns the lower bound (inclusive).
	Min() int

	// Max returns the upper bound (inclusive).
	Max() int

	// Contains reports whether v lies within the value.
	Contains(v int) bool

	// String returns the decimal text form, "v" or "min~max".
	String() string

	isNumericalValue()
}

// Single is a single numerical value.
type Single int

// Min returns the value.
func (s Single) Min() int { return int(s) }

// Max returns the value.
func (s Single) Max() int { return int(s) }

// Contains reports whether v equals the value.
func (s Single) Contains(v int) bool { return int(s) == v }

// String returns the decimal form.
func (s Single) String() string { return strconv.Itoa(int(s)) }

func (Single) isNumericalValue() {}

// Range is an inclusive interval with Min < Max.
type Range struct {
	min int
	max int
}

// Min returns the lower bound.
func (r Range) Min() int { return r.min }

// Max returns the upper bound.
func (r Range) Max() int { return r.max }

// Contains reports whether min <= v <= max.
func (r Range) Contains(v int) bool { return r.min <= v && v <= r.max }

// String returns "min~max".
func (r Range) String() string {
	return strconv.Itoa(r.min) + string(RangeSeparator) + strconv.Itoa(r.max)
}

func (Range) isNumericalValue() {}

// NewRange returns the interval [min, max]. Equal bounds yield a Single.
func NewRange(min, max int) (NumericalValue, error) {
	switch {
	case min > max:
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, min, max)
	case min == max:
		return Single(min), nil
	default:
		return Range{min: min, max: max}, nil
	}
}

// Intersect returns the overlap of a and b. The second result is false if
// the values do not overlap.
func Intersect(a, b NumericalValue) (NumericalValue, bool) {
	if a == nil || b == nil {
		return nil, false
	}
	v, err := NewRange(max(a.Min(), b.Min()), min(a.Max(), b.Max()))
	if err != nil {
		return nil, false
	}
	return v, true
}

// ParseNumericalValue parses a single number or a "min~max" range. Each
// number may use decimal, hex (0x) or base64 (0b) notation.
func ParseNumericalValue(s string) (NumericalValue, error) {
	lo, hi, isRange := strings.Cut(s, string(RangeSeparator))
	if !isRange {
		v, err := ParseNumber(s)
		if err != nil {
			return nil, err
		}
		return Single(v), nil
	}
	min, err := ParseNumber(lo)
	if err != nil {
		return nil, err
	}
	max, err := ParseNumber(hi)
	if err != nil {
		return nil, err
	}
	return NewRange(min, max)
}

// ParseNumber parses a decimal, hex or base64 encoded number that fits in
// 32 signed bits.
func ParseNumber(s string) (int, error) {
	switch {
	case decimalPattern.MatchString(s):
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
		}
		return int(v), nil
	case hexPattern.MatchString(s):
		v, err := strconv.ParseInt(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
		}
		return int(v), nil
	case base64Pattern.MatchString(s):
		return parseBase64(s[2:])
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
}

func parseBase64(digits string) (int, error) {
	var v int64
	for i := 0; i < len(digits); i++ {
		d := base64Digit(digits[i])
		if d < 0 {
			return 0, fmt.Errorf("%w: base64 digit %q", ErrInvalidNumber, digits[i])
		}
		v = v*64 + int64(d)
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("%w: base64 value overflows", ErrInvalidNumber)
		}
	}
	return int(v), nil
}

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func base64Digit(c byte) int {
	switch {
	case 'A' <= c && c <= 'Z':
		return int(c - 'A')
	case 'a' <= c && c <= 'z':
		return int(c-'a') + 26
	case '0' <= c && c <= '9':
		return int(c-'0') + 52
	case c == '+':
		return 62
	case c == '/':
		return 63
	default:
		return -1
	}
}

// FormatDecimal formats v in decimal notation.
func FormatDecimal(v int) string {
	return strconv.Itoa(v)
}

// FormatHex formats v as "0x" followed by lower case hex digits.
func FormatHex(v int) (string, error) {
	if v < 0 {
		return "", ErrNegativeNumber
	}
	return "0x" + strconv.FormatInt(int64(v), 16), nil
}

// FormatBase64 formats v as "0b" followed by base64 digits, most
// significant digit first.
func FormatBase64(v int) (string, error) {
	if v < 0 {
		return "", ErrNegativeNumber
	}
	if v == 0 {
		return "0b" + base64Alphabet[:1], nil
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = base64Alphabet[v%64]
		v /= 64
	}
	return "0b" + string(buf[i:]), nil
}
