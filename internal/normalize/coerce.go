package normalize

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedValue marks a source value that cannot stand in for a scalar
// field, such as a nested object or list decoded from JSON.
var ErrUnsupportedValue = errors.New("unsupported value")

var nullTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"nat":  true,
	"null": true,
	"none": true,
	"na":   true,
	"n/a":  true,
}

// IsNull reports whether v is absent: nil, NaN, or an empty or null-like string.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return nullTokens[strings.ToLower(strings.TrimSpace(x))]
	case []byte:
		return nullTokens[strings.ToLower(strings.TrimSpace(string(x)))]
	case *string:
		return x == nil || IsNull(*x)
	case *time.Time:
		return x == nil
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// unwrap resolves driver.Valuer values (pgtype and friends) to their plain Go
// representation.
func unwrap(v any) any {
	if _, ok := v.(time.Time); ok {
		return v
	}
	if dv, ok := v.(driver.Valuer); ok {
		if out, err := dv.Value(); err == nil {
			return out
		}
	}
	return v
}

// Text renders a scalar source value as a trimmed string. Null values yield "".
func Text(v any) (string, error) {
	v = unwrap(v)
	if IsNull(v) {
		return "", nil
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case *string:
		return strings.TrimSpace(*x), nil
	case []byte:
		return strings.TrimSpace(string(x)), nil
	case netip.Addr:
		return x.String(), nil
	case netip.Prefix:
		if x.IsSingleIP() {
			return x.Addr().String(), nil
		}
		return x.String(), nil
	case net.IP:
		return x.String(), nil
	case time.Time:
		return x.Format(time.RFC3339), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case fmt.Stringer:
		return strings.TrimSpace(x.String()), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// HTTP status codes outside this range are treated as absent.
const (
	MinStatus = 100
	MaxStatus = 599
)

// ValidStatus reports whether n is a possible HTTP status code.
func ValidStatus(n int) bool {
	return n >= MinStatus && n <= MaxStatus
}

// Status converts v to an HTTP status code. ok is false when v is null, not
// an integral number, or outside MinStatus..MaxStatus.
func Status(v any) (code int, ok bool, err error) {
	v = unwrap(v)
	if IsNull(v) {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return statusFromInt(int64(x))
	case int8:
		return statusFromInt(int64(x))
	case int16:
		return statusFromInt(int64(x))
	case int32:
		return statusFromInt(int64(x))
	case int64:
		return statusFromInt(x)
	case uint8:
		return statusFromInt(int64(x))
	case uint16:
		return statusFromInt(int64(x))
	case uint32:
		return statusFromInt(int64(x))
	case uint64:
		if x > MaxStatus {
			return 0, false, nil
		}
		return statusFromInt(int64(x))
	case float32:
		return statusFromFloat(float64(x))
	case float64:
		return statusFromFloat(x)
	case bool:
		return 0, false, nil
	}
	s, err := Text(v)
	if err != nil {
		return 0, false, err
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return statusFromInt(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return statusFromFloat(f)
	}
	return 0, false, nil
}

func statusFromInt(n int64) (int, bool, error) {
	if n < MinStatus || n > MaxStatus {
		return 0, false, nil
	}
	return int(n), true, nil
}

func statusFromFloat(f float64) (int, bool, error) {
	if math.IsNaN(f) || f != math.Trunc(f) || f < MinStatus || f > MaxStatus {
		return 0, false, nil
	}
	return int(f), true, nil
}

// Timestamp converts v to a date-time. ok is false when v is null or
// unparseable.
func Timestamp(v any, now time.Time) (t time.Time, ok bool, err error) {
	v = unwrap(v)
	if IsNull(v) {
		return time.Time{}, false, nil
	}
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero(), nil
	case *time.Time:
		return *x, !x.IsZero(), nil
	case bool:
		return time.Time{}, false, nil
	}
	s, err := Text(v)
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok = ParseTimestamp(s, now)
	return t, ok, nil
}

// LooksLikeDate reports whether v is a date-time value or a string in one of
// the full date layouts.
func LooksLikeDate(v any, loc *time.Location) bool {
	switch x := unwrap(v).(type) {
	case time.Time:
		return !x.IsZero()
	case *time.Time:
		return x != nil && !x.IsZero()
	case string:
		return ParseDate(x, loc) != nil
	case []byte:
		return ParseDate(string(x), loc) != nil
	}
	return false
}
