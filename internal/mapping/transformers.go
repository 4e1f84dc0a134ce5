package mapping

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/foldersync/internal/model"
)

// TransformerFunc converts one value. Options come from the column mapping.
// A nil value (present null) is passed through before the func is called.
type TransformerFunc func(value any, options map[string]any) (any, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]TransformerFunc{
		"uppercase":        stringTransformer(strings.ToUpper),
		"lowercase":        stringTransformer(strings.ToLower),
		"trim":             stringTransformer(strings.TrimSpace),
		"string":           toStringTransformer,
		"int":              toIntTransformer,
		"bool":             toBoolTransformer,
		"date_iso":         dateISOTransformer,
		"cents_to_dollars": scaleTransformer(-2),
		"dollars_to_cents": scaleTransformer(2),
	}
)

// RegisterTransformer adds or replaces a named transformer.
func RegisterTransformer(name string, fn TransformerFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// HasTransformer reports whether a transformer is registered under name.
func HasTransformer(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// ApplyTransformer runs the configured transformer on value.
func ApplyTransformer(cfg model.TransformerConfig, value any) (any, error) {
	registryMu.RLock()
	fn, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transformer %q", cfg.Type)
	}

	if value == nil {
		return nil, nil
	}

	out, err := fn(value, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("transformer %s: %w", cfg.Type, err)
	}
	return out, nil
}

func stringTransformer(f func(string) string) TransformerFunc {
	return func(value any, _ map[string]any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expects a string, got %T", value)
		}
		return f(s), nil
	}
}

func toStringTransformer(value any, _ map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string", value)
	}
}

func toIntTransformer(value any, _ map[string]any) (any, error) {
	r, err := toRat(value)
	if err != nil {
		return nil, err
	}
	if !r.IsInt() {
		return nil, fmt.Errorf("%s is not an integer", r.FloatString(6))
	}
	return json.Number(r.Num().String()), nil
}

func toBoolTransformer(value any, _ map[string]any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y":
			return true, nil
		case "false", "0", "no", "n", "":
			return false, nil
		}
		return nil, fmt.Errorf("cannot convert %q to bool", v)
	case json.Number, int, int64, float64:
		r, err := toRat(v)
		if err != nil {
			return nil, err
		}
		return r.Sign() != 0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bool", value)
	}
}

// dateISOTransformer parses a date with options.layout (default 2006-01-02)
// and renders it as RFC 3339.
func dateISOTransformer(value any, options map[string]any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expects a string, got %T", value)
	}

	layout := "2006-01-02"
	if l, ok := options["layout"].(string); ok && l != "" {
		layout = l
	}

	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UTC().Format(time.RFC3339), nil
}

// scaleTransformer multiplies by 10^exp using exact decimal arithmetic so
// currency conversions never pick up float rounding.
func scaleTransformer(exp int) TransformerFunc {
	return func(value any, _ map[string]any) (any, error) {
		r, err := toRat(value)
		if err != nil {
			return nil, err
		}

		factor := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(exp))), nil))
		if exp < 0 {
			r.Quo(r, factor)
		} else {
			r.Mul(r, factor)
		}

		scale := fractionDigits(value) - exp
		if scale < 0 {
			scale = 0
		}
		return json.Number(r.FloatString(scale)), nil
	}
}

func toRat(value any) (*big.Rat, error) {
	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	case int:
		return new(big.Rat).SetInt64(int64(v)), nil
	case int64:
		return new(big.Rat).SetInt64(v), nil
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return nil, fmt.Errorf("expects a number, got %T", value)
	}

	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("%q is not a number", text)
	}
	return r, nil
}

// fractionDigits counts digits after the decimal point in a number's text form.
func fractionDigits(value any) int {
	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return 0
	}
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, '.'); i >= 0 {
		return len(text) - i - 1
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
