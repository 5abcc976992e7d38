package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vbonduro/shelfshot/internal/domain"
)

// EditKind selects how an edit buffer is prefilled and parsed.
type EditKind int

const (
	KindText EditKind = iota
	KindNumber
	KindInt
	KindBool
	KindJSON
	KindList
	KindAspects
)

// structureCoreFields are always listed first in the structure pane, in this
// order, whether or not the document has them.
var structureCoreFields = []string{
	"name",
	"brand.name",
	"description",
	"color",
	"material",
	"mpn",
	"sku",
	"size",
	"offers.price",
	"offers.price_currency",
	"offers.price_specification.price",
	"offers.price_specification.price_currency",
	"weight.value",
	"weight.unit_text",
	"height.value",
	"height.unit_text",
	"width.value",
	"width.unit_text",
	"depth.value",
	"depth.unit_text",
	"image",
}

type StructureEntry struct {
	Path  string
	Value any
}

// parseStructure decodes a product's structure document. A missing or
// malformed document reads as an empty object.
func parseStructure(raw json.RawMessage) map[string]any {
	var doc map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &doc) != nil || doc == nil {
		return map[string]any{}
	}
	return doc
}

// StructureEntries lists the core fields followed by every other leaf of the
// document, sorted by dotted path.
func StructureEntries(raw json.RawMessage) []StructureEntry {
	doc := parseStructure(raw)
	entries := make([]StructureEntry, 0, len(structureCoreFields))
	for _, path := range structureCoreFields {
		v, _ := getJSONPath(doc, path)
		entries = append(entries, StructureEntry{Path: path, Value: v})
	}

	var extra []string
	leaves := make(map[string]any)
	flattenJSON("", doc, leaves)
	for path := range leaves {
		if !slices.Contains(structureCoreFields, path) {
			extra = append(extra, path)
		}
	}
	slices.Sort(extra)
	for _, path := range extra {
		entries = append(entries, StructureEntry{Path: path, Value: leaves[path]})
	}
	return entries
}

func flattenJSON(prefix string, v any, out map[string]any) {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		if prefix != "" {
			out[prefix] = v
		}
		return
	}
	for k, child := range obj {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		flattenJSON(path, child, out)
	}
}

func getJSONPath(doc any, path string) (any, bool) {
	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// setJSONPath writes value at a dotted path, replacing any non-object on the
// way with a new object.
func setJSONPath(doc map[string]any, path string, value any) {
	keys := strings.Split(path, ".")
	cur := doc
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
}

func structureKind(v any) EditKind {
	switch v.(type) {
	case float64:
		return KindNumber
	case bool:
		return KindBool
	case []any, map[string]any:
		return KindJSON
	}
	return KindText
}

func structureBuffer(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// parseStructureValue reads an edited structure field. An empty buffer clears
// the field to null.
func parseStructureValue(buffer string, kind EditKind) (any, error) {
	trimmed := strings.TrimSpace(buffer)
	if trimmed == "" {
		return nil, nil
	}
	switch kind {
	case KindNumber:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, errors.New("expected a number")
		}
		return f, nil
	case KindBool:
		switch strings.ToLower(trimmed) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, errors.New("expected true/false")
	case KindJSON:
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return buffer, nil
}

// ListingField is one editable row of the listings pane.
type ListingField struct {
	Label string
	Kind  EditKind
	get   func(*domain.Listing) string
	set   func(*domain.Listing, string) error
}

func textField(label string, p func(*domain.Listing) *string) ListingField {
	return ListingField{
		Label: label,
		Kind:  KindText,
		get:   func(l *domain.Listing) string { return *p(l) },
		set: func(l *domain.Listing, buf string) error {
			*p(l) = strings.TrimSpace(buf)
			return nil
		},
	}
}

func intField(label string, p func(*domain.Listing) **int) ListingField {
	return ListingField{
		Label: label,
		Kind:  KindInt,
		get: func(l *domain.Listing) string {
			if v := *p(l); v != nil {
				return strconv.Itoa(*v)
			}
			return ""
		},
		set: func(l *domain.Listing, buf string) error {
			trimmed := strings.TrimSpace(buf)
			if trimmed == "" {
				*p(l) = nil
				return nil
			}
			n, err := strconv.Atoi(trimmed)
			if err != nil {
				return errors.New("expected an integer")
			}
			*p(l) = &n
			return nil
		},
	}
}

var listingFields = []ListingField{
	textField("Title", func(l *domain.Listing) *string { return &l.Title }),
	textField("Description", func(l *domain.Listing) *string { return &l.Description }),
	{
		Label: "Price",
		Kind:  KindNumber,
		get: func(l *domain.Listing) string {
			if l.Price == nil {
				return ""
			}
			return strconv.FormatFloat(*l.Price, 'f', -1, 64)
		},
		set: func(l *domain.Listing, buf string) error {
			trimmed := strings.TrimSpace(buf)
			if trimmed == "" {
				l.Price = nil
				return nil
			}
			f, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				return errors.New("expected a number")
			}
			l.Price = &f
			return nil
		},
	},
	textField("Currency", func(l *domain.Listing) *string { return &l.Currency }),
	textField("Category Label", func(l *domain.Listing) *string { return &l.CategoryLabel }),
	textField("Category ID", func(l *domain.Listing) *string { return &l.CategoryID }),
	textField("Condition", func(l *domain.Listing) *string { return &l.Condition }),
	intField("Condition ID", func(l *domain.Listing) **int { return &l.ConditionID }),
	intField("Quantity", func(l *domain.Listing) **int { return &l.Quantity }),
	{
		Label: "Images",
		Kind:  KindList,
		get:   func(l *domain.Listing) string { return strings.Join(l.Images, "\n") },
		set: func(l *domain.Listing, buf string) error {
			l.Images = splitList(buf)
			return nil
		},
	},
	{
		Label: "Aspects",
		Kind:  KindAspects,
		get:   func(l *domain.Listing) string { return formatAspects(l.Aspects) },
		set: func(l *domain.Listing, buf string) error {
			aspects, err := parseAspects(buf)
			if err != nil {
				return err
			}
			l.Aspects = aspects
			return nil
		},
	},
	textField("Merchant Location Key", func(l *domain.Listing) *string { return &l.MerchantLocationKey }),
	textField("Fulfillment Policy ID", func(l *domain.Listing) *string { return &l.FulfillmentPolicyID }),
	textField("Payment Policy ID", func(l *domain.Listing) *string { return &l.PaymentPolicyID }),
	textField("Return Policy ID", func(l *domain.Listing) *string { return &l.ReturnPolicyID }),
	textField("Status", func(l *domain.Listing) *string { return &l.Status }),
	textField("Listing ID", func(l *domain.Listing) *string { return &l.ListingID }),
}

// ListingFields returns the editable listing rows in display order.
func ListingFields() []ListingField { return listingFields }

// Value renders the field of l as it appears in an edit buffer.
func (f ListingField) Value(l *domain.Listing) string { return f.get(l) }

// splitList accepts one item per line or comma separated items.
func splitList(buf string) []string {
	var out []string
	for _, line := range strings.Split(buf, "\n") {
		for _, item := range strings.Split(line, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func formatAspects(aspects map[string][]string) string {
	names := make([]string, 0, len(aspects))
	for name := range aspects {
		names = append(names, name)
	}
	slices.Sort(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, name+": "+strings.Join(aspects[name], ", "))
	}
	return strings.Join(lines, "\n")
}

// parseAspects reads "Name: value, value" lines.
func parseAspects(buf string) (map[string][]string, error) {
	var out map[string][]string
	for i, line := range strings.Split(buf, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, values, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("line %d: expected Name: value", i+1)
		}
		if out == nil {
			out = make(map[string][]string)
		}
		var vals []string
		for _, v := range strings.Split(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				vals = append(vals, v)
			}
		}
		out[name] = vals
	}
	return out, nil
}
