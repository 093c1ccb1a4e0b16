package parse

import (
	"errors"
	"fmt"
	"strings"

	"crane-fleet-backend/internal/cycle"
)

// DefaultPartLabels are the display names used by the field crews.
var DefaultPartLabels = map[string]string{
	"engine_oil":          "機油",
	"main_hoist_gear_oil": "主捲",
	"lion_head_gear_oil":  "獅頭",
	"aux_hoist_gear_oil":  "補捲",
	"luffing_gear_oil":    "起伏",
	"slewing_gear_oil":    "旋回",
	"circulation_oil":     "循環油",
	"belts":               "皮帶",
	"sprocket":            "齒盤",
	"sprocket_oiling":     "齒盤注油",
}

// DefaultConsumableLabels are the display names of the filters.
var DefaultConsumableLabels = map[string]string{
	"engine_oil_filter":         "機油芯",
	"fuel_oil_filter":           "柴油芯",
	"brake_drain_filter":        "煞車",
	"circulation_drain_filter":  "排水",
	"circulation_inlet_filter":  "進油",
	"circulation_return_filter": "回油",
}

// UnknownCodeError lists input tokens that match neither a code nor a label,
// per kind.
type UnknownCodeError struct {
	Parts       []string
	Consumables []string
}

func (e *UnknownCodeError) Error() string {
	var msgs []string
	if len(e.Parts) > 0 {
		msgs = append(msgs, "unknown parts: "+strings.Join(e.Parts, ", "))
	}
	if len(e.Consumables) > 0 {
		msgs = append(msgs, "unknown consumables: "+strings.Join(e.Consumables, ", "))
	}
	return strings.Join(msgs, "; ")
}

// Items returns every unknown token, parts first.
func (e *UnknownCodeError) Items() []string {
	out := make([]string, 0, len(e.Parts)+len(e.Consumables))
	out = append(out, e.Parts...)
	return append(out, e.Consumables...)
}

// Labels is the bidirectional code/label table for parts and consumables.
type Labels struct {
	partLabel       map[cycle.Part]string
	partCode        map[string]cycle.Part
	consumableLabel map[cycle.Consumable]string
	consumableCode  map[string]cycle.Consumable
}

// NewLabels builds the table from the defaults, applying any overrides.
// Every label must be unique and must not shadow a code.
func NewLabels(partOverrides, consumableOverrides map[string]string) (*Labels, error) {
	l := &Labels{
		partLabel:       make(map[cycle.Part]string, len(cycle.Parts)),
		partCode:        make(map[string]cycle.Part, len(cycle.Parts)),
		consumableLabel: make(map[cycle.Consumable]string, len(cycle.Consumables)),
		consumableCode:  make(map[string]cycle.Consumable, len(cycle.Consumables)),
	}

	for code := range partOverrides {
		if !cycle.IsPart(code) {
			return nil, fmt.Errorf("label override for unknown part %q", code)
		}
	}
	for code := range consumableOverrides {
		if !cycle.IsConsumable(code) {
			return nil, fmt.Errorf("label override for unknown consumable %q", code)
		}
	}

	seen := make(map[string]string)
	claim := func(code, label string) error {
		label = strings.TrimSpace(label)
		if label == "" {
			return fmt.Errorf("empty label for %q", code)
		}
		if cycle.IsPart(label) || cycle.IsConsumable(label) {
			if label != code {
				return fmt.Errorf("label %q of %q collides with a code", label, code)
			}
		}
		if other, ok := seen[label]; ok {
			return fmt.Errorf("label %q used by both %q and %q", label, other, code)
		}
		seen[label] = code
		return nil
	}

	for _, p := range cycle.Parts {
		label := pick(string(p), partOverrides, DefaultPartLabels)
		if err := claim(string(p), label); err != nil {
			return nil, err
		}
		label = strings.TrimSpace(label)
		l.partLabel[p] = label
		l.partCode[label] = p
	}
	for _, c := range cycle.Consumables {
		label := pick(string(c), consumableOverrides, DefaultConsumableLabels)
		if err := claim(string(c), label); err != nil {
			return nil, err
		}
		label = strings.TrimSpace(label)
		l.consumableLabel[c] = label
		l.consumableCode[label] = c
	}
	return l, nil
}

// MustDefaultLabels returns the default table.
func MustDefaultLabels() *Labels {
	l, err := NewLabels(nil, nil)
	if err != nil {
		panic(err)
	}
	return l
}

func pick(code string, overrides, defaults map[string]string) string {
	if v, ok := overrides[code]; ok {
		return v
	}
	if v, ok := defaults[code]; ok {
		return v
	}
	return code
}

// NormalizeParts maps codes or labels to part codes, dropping blanks and
// duplicates while keeping first-seen order.
func (l *Labels) NormalizeParts(items []string) ([]cycle.Part, error) {
	var (
		codes   []cycle.Part
		unknown []string
	)
	seen := make(map[cycle.Part]bool)
	for _, raw := range items {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		var code cycle.Part
		switch {
		case cycle.IsPart(s):
			code = cycle.Part(s)
		default:
			c, ok := l.partCode[s]
			if !ok {
				unknown = append(unknown, s)
				continue
			}
			code = c
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownCodeError{Parts: unknown}
	}
	return codes, nil
}

// NormalizeConsumables maps codes or labels to consumable codes, dropping
// blanks and duplicates while keeping first-seen order.
func (l *Labels) NormalizeConsumables(items []string) ([]cycle.Consumable, error) {
	var (
		codes   []cycle.Consumable
		unknown []string
	)
	seen := make(map[cycle.Consumable]bool)
	for _, raw := range items {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		var code cycle.Consumable
		switch {
		case cycle.IsConsumable(s):
			code = cycle.Consumable(s)
		default:
			c, ok := l.consumableCode[s]
			if !ok {
				unknown = append(unknown, s)
				continue
			}
			code = c
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownCodeError{Consumables: unknown}
	}
	return codes, nil
}

// Normalize maps a part list and a consumable list together. Unknown tokens of
// both kinds are reported in a single error.
func (l *Labels) Normalize(parts, consumables []string) ([]cycle.Part, []cycle.Consumable, error) {
	pcodes, perr := l.NormalizeParts(parts)
	ccodes, cerr := l.NormalizeConsumables(consumables)
	if perr == nil && cerr == nil {
		return pcodes, ccodes, nil
	}

	merged := &UnknownCodeError{}
	for _, err := range []error{perr, cerr} {
		var unknown *UnknownCodeError
		if errors.As(err, &unknown) {
			merged.Parts = append(merged.Parts, unknown.Parts...)
			merged.Consumables = append(merged.Consumables, unknown.Consumables...)
		}
	}
	return nil, nil, merged
}

// PartLabel returns the display label of a part, or the code itself when unknown.
func (l *Labels) PartLabel(p cycle.Part) string {
	if label, ok := l.partLabel[p]; ok {
		return label
	}
	return string(p)
}

// ConsumableLabel returns the display label of a consumable, or the code itself when unknown.
func (l *Labels) ConsumableLabel(c cycle.Consumable) string {
	if label, ok := l.consumableLabel[c]; ok {
		return label
	}
	return string(c)
}

// PartLabels translates a list of part codes.
func (l *Labels) PartLabels(parts []cycle.Part) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, l.PartLabel(p))
	}
	return out
}

// ConsumableLabels translates a list of consumable codes.
func (l *Labels) ConsumableLabels(cons []cycle.Consumable) []string {
	out := make([]string, 0, len(cons))
	for _, c := range cons {
		out = append(out, l.ConsumableLabel(c))
	}
	return out
}
