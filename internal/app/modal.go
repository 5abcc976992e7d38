package app

import (
	"encoding/json"
	"maps"
	"strings"
	"time"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/domain"
)

// Modal is the overlay that currently owns the keyboard. handleKey returns
// the modal that stays open (nil closes it) and whether the key was consumed.
type Modal interface {
	handleKey(s *State, k Key) (Modal, bool)
}

// editBuffer is the multi-line text shared by the edit modals. Enter inserts
// a newline; keys it does not understand are swallowed.
type editBuffer struct {
	Buffer string
}

func (b *editBuffer) edit(k Key) {
	switch k.Code {
	case KeyEnter:
		b.Buffer += "\n"
	case KeyBackspace:
		if r := []rune(b.Buffer); len(r) > 0 {
			b.Buffer = string(r[:len(r)-1])
		}
	case KeyRune:
		b.Buffer += string(k.Rune)
	}
}

type TextEdit struct {
	editBuffer
	ProductID string
}

func (m *TextEdit) handleKey(s *State, k Key) (Modal, bool) {
	if k.Code != KeyEsc {
		m.edit(k)
		return m, true
	}
	s.send(bus.SetProductContext{ProductID: m.ProductID, Text: m.Buffer})
	s.toast(domain.SeveritySuccess, "Text saved.")
	return nil, true
}

type StructureEdit struct {
	editBuffer
	ProductID string
}

func (m *StructureEdit) handleKey(s *State, k Key) (Modal, bool) {
	if k.Code != KeyEsc {
		m.edit(k)
		return m, true
	}
	var doc any
	if err := json.Unmarshal([]byte(m.Buffer), &doc); err != nil {
		s.toastf(domain.SeverityError, "Invalid JSON: %v", err)
		return m, true
	}
	raw, _ := json.Marshal(doc)
	s.send(bus.SetProductStructure{ProductID: m.ProductID, Structure: raw})
	s.toast(domain.SeveritySuccess, "Structure saved.")
	return nil, true
}

type StructureFieldEdit struct {
	editBuffer
	ProductID string
	Path      string
	Kind      EditKind
	Structure json.RawMessage
}

func (m *StructureFieldEdit) handleKey(s *State, k Key) (Modal, bool) {
	if k.Code != KeyEsc {
		m.edit(k)
		return m, true
	}
	value, err := parseStructureValue(m.Buffer, m.Kind)
	if err != nil {
		s.toastf(domain.SeverityError, "Invalid value: %v", err)
		return m, true
	}
	doc := parseStructure(m.Structure)
	setJSONPath(doc, m.Path, value)
	raw, _ := json.Marshal(doc)
	s.send(bus.SetProductStructure{ProductID: m.ProductID, Structure: raw})
	s.toast(domain.SeveritySuccess, "Structure field saved.")
	return nil, true
}

type ListingEdit struct {
	editBuffer
	ProductID   string
	Marketplace string
}

func (m *ListingEdit) handleKey(s *State, k Key) (Modal, bool) {
	if k.Code != KeyEsc {
		m.edit(k)
		return m, true
	}
	if m.Marketplace == "" {
		s.toast(domain.SeverityWarning, "No listing selected.")
		return m, true
	}
	var listing domain.Listing
	if err := json.Unmarshal([]byte(m.Buffer), &listing); err != nil {
		s.toastf(domain.SeverityError, "Invalid listing JSON: %v", err)
		return m, true
	}
	s.send(bus.SetProductListings{ProductID: m.ProductID, Listings: s.listingsWith(m.Marketplace, listing)})
	s.toast(domain.SeveritySuccess, "Listing saved.")
	return nil, true
}

type ListingFieldEdit struct {
	editBuffer
	ProductID   string
	Marketplace string
	Field       ListingField
}

func (m *ListingFieldEdit) handleKey(s *State, k Key) (Modal, bool) {
	if k.Code != KeyEsc {
		m.edit(k)
		return m, true
	}
	listing := s.ListingFor(m.Marketplace)
	if err := m.Field.set(&listing, m.Buffer); err != nil {
		s.toastf(domain.SeverityError, "Invalid value: %v", err)
		return m, true
	}
	s.send(bus.SetProductListings{ProductID: m.ProductID, Listings: s.listingsWith(m.Marketplace, listing)})
	s.toast(domain.SeveritySuccess, "Listing field saved.")
	return nil, true
}

// SettingsEdit is single-line: Enter saves and Esc cancels.
type SettingsEdit struct {
	editBuffer
	Field int
}

func (m *SettingsEdit) handleKey(s *State, k Key) (Modal, bool) {
	switch k.Code {
	case KeyEsc:
		s.toast(domain.SeverityInfo, "Edit canceled.")
		return nil, true
	case KeyEnter:
		settings := s.Settings
		*settingsFields[m.Field].field(&settings) = strings.TrimSpace(m.Buffer)
		s.send(bus.SaveSettings{Settings: settings})
		return nil, true
	}
	m.edit(k)
	return m, true
}

type settingsField struct {
	Label string
	field func(*domain.Settings) *string
}

var settingsFields = []settingsField{
	{"Marketplace", func(s *domain.Settings) *string { return &s.Marketplace }},
	{"Merchant Location", func(s *domain.Settings) *string { return &s.MerchantLocationKey }},
	{"Fulfillment Policy", func(s *domain.Settings) *string { return &s.FulfillmentPolicyID }},
	{"Payment Policy", func(s *domain.Settings) *string { return &s.PaymentPolicyID }},
	{"Return Policy", func(s *domain.Settings) *string { return &s.ReturnPolicyID }},
}

// SettingsLabels returns the settings rows in display order.
func SettingsLabels() []string {
	out := make([]string, len(settingsFields))
	for i, f := range settingsFields {
		out[i] = f.Label
	}
	return out
}

// SettingsValue is the current value of settings row i.
func (s *State) SettingsValue(i int) string {
	settings := s.Settings
	return *settingsFields[i].field(&settings)
}

// Help is the key reference overlay. It swallows every key except Esc and ?.
type Help struct{}

func (m *Help) handleKey(_ *State, k Key) (Modal, bool) {
	if k.Code == KeyEsc || k.Is('?') {
		return nil, true
	}
	return m, true
}

// DeleteConfirm waits for y or n before a product is deleted. Any other key
// dismisses it and is handled normally.
type DeleteConfirm struct {
	ProductID string
	SKUAlias  string
	ExpiresAt time.Time
}

func (m *DeleteConfirm) expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

func (m *DeleteConfirm) handleKey(s *State, k Key) (Modal, bool) {
	if m.expired(s.now()) {
		return nil, false
	}
	switch {
	case k.Is('y') || k.Is('Y'):
		s.send(bus.DeleteProduct{ProductID: m.ProductID})
		s.toast(domain.SeverityWarning, "Deleting product...")
		return nil, true
	case k.Is('n') || k.Is('N') || k.Code == KeyEsc:
		s.toast(domain.SeverityInfo, "Delete canceled.")
		return nil, true
	}
	return nil, false
}

// ProductPicker filters the product list by SKU or display name.
type ProductPicker struct {
	Search   string
	Selected int
}

// Matches returns the products visible under the current search.
func (m *ProductPicker) Matches(products []domain.ProductSummary) []domain.ProductSummary {
	q := strings.ToLower(strings.TrimSpace(m.Search))
	if q == "" {
		return products
	}
	var out []domain.ProductSummary
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.SKUAlias), q) || strings.Contains(strings.ToLower(p.DisplayName), q) {
			out = append(out, p)
		}
	}
	return out
}

func (m *ProductPicker) handleKey(s *State, k Key) (Modal, bool) {
	matches := m.Matches(s.Products)
	switch k.Code {
	case KeyEsc:
		return nil, true
	case KeyUp:
		m.Selected = max(m.Selected-1, 0)
	case KeyDown:
		if m.Selected+1 < len(matches) {
			m.Selected++
		}
	case KeyEnter:
		if m.Selected < len(matches) {
			s.send(bus.StartSessionForProduct{ProductID: matches[m.Selected].ProductID})
			return nil, true
		}
	case KeyBackspace:
		if r := []rune(m.Search); len(r) > 0 {
			m.Search = string(r[:len(r)-1])
		}
		m.Selected = 0
	case KeyRune:
		m.Search += string(k.Rune)
		m.Selected = 0
	}
	return m, true
}

// ListingFor returns a copy of the active product's listing for marketplace,
// seeded from the marketplace defaults when it has none yet.
func (s *State) ListingFor(marketplace string) domain.Listing {
	if s.Product != nil {
		if l, ok := s.Product.Listings[marketplace]; ok {
			return l
		}
	}
	return domain.Listing{
		MerchantLocationKey: s.Settings.MerchantLocationKey,
		FulfillmentPolicyID: s.Settings.FulfillmentPolicyID,
		PaymentPolicyID:     s.Settings.PaymentPolicyID,
		ReturnPolicyID:      s.Settings.ReturnPolicyID,
	}
}

// listingsWith copies the product's listings with one entry replaced.
func (s *State) listingsWith(marketplace string, l domain.Listing) map[string]domain.Listing {
	out := make(map[string]domain.Listing)
	if s.Product != nil {
		maps.Copy(out, s.Product.Listings)
	}
	out[marketplace] = l
	return out
}
