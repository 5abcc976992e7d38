package domain

import (
	"encoding/json"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ImageEntry is a committed product image. RelPath is relative to the
// product directory.
type ImageEntry struct {
	RelPath         string    `json:"rel_path"`
	CreatedAt       time.Time `json:"created_at"`
	SharpnessScore  *float64  `json:"sharpness_score,omitempty"`
	UploadedURL     string    `json:"uploaded_url,omitempty"`
	UploadedMediaID string    `json:"uploaded_media_id,omitempty"`
}

// FrameEntry is a captured session frame. RelPath is relative to the
// session directory.
type FrameEntry struct {
	RelPath        string    `json:"rel_path"`
	CreatedAt      time.Time `json:"created_at"`
	SharpnessScore *float64  `json:"sharpness_score,omitempty"`
}

// Picks holds the frames chosen for commit. SelectedRelPaths is the current
// selection model; HeroRelPath and AngleRelPaths are the older hero + angles
// model and are only consulted when the selection is empty.
type Picks struct {
	SelectedRelPaths []string `json:"selected_rel_paths"`
	HeroRelPath      string   `json:"hero_rel_path,omitempty"`
	AngleRelPaths    []string `json:"angle_rel_paths"`
}

func (p Picks) Empty() bool {
	return len(p.SelectedRelPaths) == 0 && p.HeroRelPath == "" && len(p.AngleRelPaths) == 0
}

func (p Picks) IsSelected(rel string) bool {
	for _, s := range p.SelectedRelPaths {
		if s == rel {
			return true
		}
	}
	return false
}

type SessionManifest struct {
	SessionID   string       `json:"session_id"`
	ProductID   string       `json:"product_id"`
	CreatedAt   time.Time    `json:"created_at"`
	CommittedAt *time.Time   `json:"committed_at,omitempty"`
	Frames      []FrameEntry `json:"frames"`
	Picks       Picks        `json:"picks"`
}

func (s *SessionManifest) Committed() bool {
	return s.CommittedAt != nil
}

// FrameIndex returns the position of rel in Frames, or -1.
func (s *SessionManifest) FrameIndex(rel string) int {
	for i, f := range s.Frames {
		if f.RelPath == rel {
			return i
		}
	}
	return -1
}

type ProductManifest struct {
	ProductID       string             `json:"product_id"`
	SKUAlias        string             `json:"sku_alias"`
	DisplayName     string             `json:"display_name,omitempty"`
	ContextText     string             `json:"context_text,omitempty"`
	StructureJSON   json.RawMessage    `json:"structure_json,omitempty"`
	Listings        map[string]Listing `json:"listings"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Images          []ImageEntry       `json:"images"`
	HeroRelPath     string             `json:"hero_rel_path,omitempty"`
	HeroUploadedURL string             `json:"hero_uploaded_url,omitempty"`
	HeroMediaID     string             `json:"hero_media_id,omitempty"`
}

func (p *ProductManifest) Summary() ProductSummary {
	return ProductSummary{
		ProductID:   p.ProductID,
		SKUAlias:    p.SKUAlias,
		DisplayName: p.DisplayName,
		ImageCount:  len(p.Images),
		HeroRelPath: p.HeroRelPath,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ImageIndex returns the position of rel in Images, or -1.
func (p *ProductManifest) ImageIndex(rel string) int {
	for i, img := range p.Images {
		if img.RelPath == rel {
			return i
		}
	}
	return -1
}

type AspectSpec struct {
	Name     string   `json:"name"`
	Required bool     `json:"required"`
	Samples  []string `json:"samples,omitempty"`
}

// Listing is a marketplace listing draft keyed by marketplace in
// ProductManifest.Listings.
type Listing struct {
	Title               string              `json:"title,omitempty"`
	Description         string              `json:"description,omitempty"`
	Price               *float64            `json:"price,omitempty"`
	Currency            string              `json:"currency,omitempty"`
	Images              []string            `json:"images,omitempty"`
	CategoryID          string              `json:"category_id,omitempty"`
	CategoryLabel       string              `json:"category_label,omitempty"`
	Condition           string              `json:"condition,omitempty"`
	ConditionID         *int                `json:"condition_id,omitempty"`
	AllowedConditions   []string            `json:"allowed_conditions,omitempty"`
	AllowedConditionIDs []int               `json:"allowed_condition_ids,omitempty"`
	Aspects             map[string][]string `json:"aspects,omitempty"`
	AspectSpecs         []AspectSpec        `json:"aspect_specs,omitempty"`
	Quantity            *int                `json:"quantity,omitempty"`
	MerchantLocationKey string              `json:"merchant_location_key,omitempty"`
	FulfillmentPolicyID string              `json:"fulfillment_policy_id,omitempty"`
	PaymentPolicyID     string              `json:"payment_policy_id,omitempty"`
	ReturnPolicyID      string              `json:"return_policy_id,omitempty"`
	Status              string              `json:"status,omitempty"`
	ListingID           string              `json:"listing_id,omitempty"`
}

type ProductSummary struct {
	ProductID   string    `json:"product_id"`
	SKUAlias    string    `json:"sku_alias"`
	DisplayName string    `json:"display_name,omitempty"`
	ImageCount  int       `json:"image_count"`
	HeroRelPath string    `json:"hero_rel_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RemoteProduct is the document exchanged with the remote catalog. Nil or
// empty fields mean "leave the local value alone".
type RemoteProduct struct {
	ProductID     string             `json:"product_id"`
	DisplayName   *string            `json:"display_name,omitempty"`
	ContextText   *string            `json:"context_text,omitempty"`
	StructureJSON json.RawMessage    `json:"structure_json,omitempty"`
	Listings      map[string]Listing `json:"listings,omitempty"`
}

// Settings are the marketplace defaults applied to new listings.
type Settings struct {
	Marketplace         string `yaml:"marketplace" json:"marketplace"`
	MerchantLocationKey string `yaml:"merchant_location_key,omitempty" json:"merchant_location_key,omitempty"`
	FulfillmentPolicyID string `yaml:"fulfillment_policy_id,omitempty" json:"fulfillment_policy_id,omitempty"`
	PaymentPolicyID     string `yaml:"payment_policy_id,omitempty" json:"payment_policy_id,omitempty"`
	ReturnPolicyID      string `yaml:"return_policy_id,omitempty" json:"return_policy_id,omitempty"`
}

type ActivityEntry struct {
	At       time.Time `json:"at"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

type UploadJob struct {
	ID        string
	ProductID string
	RelPath   string
	Status    JobStatus
	LastError string
}
