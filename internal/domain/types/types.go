// Package types contains the JSON payloads exposed to export and inspector
// consumers.
package types

import (
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

// BNRow is one fixed-shape snapshot row. Indices always carries every
// candidate key and Bins every candidate bin field; missing values are null.
type BNRow struct {
	ImageID        int64               `json:"image_id"`
	Source         string              `json:"source"`
	Indices        map[string]*float64 `json:"indices"`
	Bins           map[string]*string  `json:"bins"`
	AgreementScore *float64            `json:"agreement_score"`
	IRRBin         *string             `json:"irr_bin"`
}

// NewBNRow returns a row with every key and bin field present and null.
func NewBNRow(imageID int64, source string, keys, binFields []string) BNRow {
	row := BNRow{
		ImageID: imageID,
		Source:  source,
		Indices: make(map[string]*float64, len(keys)),
		Bins:    make(map[string]*string, len(binFields)),
	}
	for _, k := range keys {
		row.Indices[k] = nil
	}
	for _, f := range binFields {
		row.Bins[f] = nil
	}
	return row
}

// Codebook variable roles.
const (
	RoleID    = "id"
	RoleIndex = "index"
	RoleBin   = "bin"
	RoleMeta  = "meta"
)

// Codebook variable types.
const (
	VarContinuous = "continuous"
	VarOrdinal    = "ordinal"
	VarDiscrete   = "discrete"
)

// CodebookVariable describes one column of the snapshot.
type CodebookVariable struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	VarType     string   `json:"var_type"`
	States      []string `json:"states,omitempty"`
	Description string   `json:"description,omitempty"`
	// Index is the catalog key a bin column is derived from.
	Index string `json:"index,omitempty"`
}

// Codebook lists the snapshot columns for BN tooling.
type Codebook struct {
	Source      string             `json:"source"`
	GeneratedAt time.Time          `json:"generated_at"`
	Variables   []CodebookVariable `json:"variables"`
}

// ValidationRow is one flattened feature record for hierarchical models.
type ValidationRow struct {
	ImageID      int64       `json:"image_id"`
	AttributeKey string      `json:"attribute_key"`
	Value        model.Value `json:"value"`
	Source       string      `json:"source"`
	SourceKind   string      `json:"source_kind"`
	Rater        string      `json:"rater,omitempty"`
	Confidence   float64     `json:"confidence"`
	DurationMS   int64       `json:"duration_ms"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Tag statuses.
const (
	StatusMachine = "machine"
	StatusDerived = "derived"
)

// ImageInfo is the registry view of the inspected image.
type ImageInfo struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	StorageLocator string    `json:"storage_locator"`
	DisplayURL     string    `json:"display_url"`
	CreatedAt      time.Time `json:"created_at"`
}

// Feature is one raw machine measurement.
type Feature struct {
	Key        string      `json:"key"`
	Value      model.Value `json:"value"`
	Source     string      `json:"source"`
	Confidence float64     `json:"confidence"`
}

// Tag is one computed composite index.
type Tag struct {
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	RawValue float64 `json:"raw_value"`
	Bin      *string `json:"bin"`
	Status   string  `json:"status"`
}

// Node is a BN-like view of a binned index: the observed bin carries all
// posterior mass and no prior is modeled.
type Node struct {
	Name      string             `json:"name"`
	Label     string             `json:"label"`
	Posterior map[string]float64 `json:"posterior"`
	Prior     map[string]float64 `json:"prior"`
	Notes     string             `json:"notes"`
}

// BN groups the nodes with the image agreement score.
type BN struct {
	Nodes  []Node   `json:"nodes"`
	IRR    *float64 `json:"irr"`
	IRRBin *string  `json:"irr_bin"`
}

// Validation is one human judgment.
type Validation struct {
	UserID       string      `json:"user_id"`
	AttributeKey string      `json:"attribute_key"`
	Value        model.Value `json:"value"`
	DurationMS   int64       `json:"duration_ms"`
	CreatedAt    time.Time   `json:"created_at"`
}

// InspectorPayload is the consolidated per-image view.
type InspectorPayload struct {
	Image       ImageInfo    `json:"image"`
	Features    []Feature    `json:"features"`
	Tags        []Tag        `json:"tags"`
	BN          BN           `json:"bn"`
	Validations []Validation `json:"validations"`
}

// NewInspectorPayload returns a payload whose lists are empty, not null.
func NewInspectorPayload(img ImageInfo) InspectorPayload {
	return InspectorPayload{
		Image:       img,
		Features:    []Feature{},
		Tags:        []Tag{},
		BN:          BN{Nodes: []Node{}},
		Validations: []Validation{},
	}
}
