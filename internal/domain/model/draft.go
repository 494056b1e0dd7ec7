package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DraftKind selects the payload schema of a draft. The kind is encoded
// as the ID prefix so stored drafts remain self-describing.
type DraftKind string

const (
	// DraftKindOCR holds fields extracted from a photographed label.
	DraftKindOCR DraftKind = "ocr"
	// DraftKindNFC holds fields read from a medication package tag.
	DraftKindNFC DraftKind = "nfc"
)

// Draft is unsubmitted form input staged locally until the remote
// confirms it. Data is stored opaque; DecodePayload validates it against
// the kind-specific schema when the draft is resumed into a form.
type Draft struct {
	ID           string
	Data         map[string]any
	ImagePaths   []string
	LastModified time.Time
}

// NewDraftID builds a globally unique draft ID: kind prefix, creation
// timestamp, and a random suffix so two drafts created within the same
// millisecond never collide.
func NewDraftID(kind DraftKind, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", kind, now.UnixMilli(), uuid.NewString()[:8])
}

// Kind extracts the draft kind from the ID prefix. The second return is
// false for IDs with an unknown or missing prefix.
func (d Draft) Kind() (DraftKind, bool) {
	prefix, _, ok := strings.Cut(d.ID, "_")
	if !ok {
		return "", false
	}

	switch DraftKind(prefix) {
	case DraftKindOCR:
		return DraftKindOCR, true
	case DraftKindNFC:
		return DraftKindNFC, true
	default:
		return "", false
	}
}

// OCRDraftPayload is the typed form of an ocr_ draft's data.
type OCRDraftPayload struct {
	Medication string  `json:"medication"`
	Dosage     string  `json:"dosage"`
	Notes      string  `json:"notes"`
	Confidence float64 `json:"confidence"`
}

// NFCDraftPayload is the typed form of an nfc_ draft's data.
type NFCDraftPayload struct {
	TagID          string    `json:"tag_id"`
	MedicationCode string    `json:"medication_code"`
	ScannedAt      time.Time `json:"scanned_at"`
}

// DecodePayload converts the opaque Data mapping into the typed payload
// selected by the draft's kind, validating required fields. This is the
// boundary check that runs when a draft is resumed into a form; the
// store itself never validates payloads.
func (d Draft) DecodePayload() (any, error) {
	kind, ok := d.Kind()
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", d.ID, ErrUnknownDraftKind)
	}

	raw, err := json.Marshal(d.Data)
	if err != nil {
		return nil, fmt.Errorf("encode draft %s data: %w", d.ID, err)
	}

	switch kind {
	case DraftKindOCR:
		var p OCRDraftPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode ocr draft %s: %w", d.ID, err)
		}
		if p.Medication == "" {
			return nil, fmt.Errorf("ocr draft %s: %w: medication is required", d.ID, ErrInvalidDraftPayload)
		}
		return p, nil
	case DraftKindNFC:
		var p NFCDraftPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode nfc draft %s: %w", d.ID, err)
		}
		if p.TagID == "" {
			return nil, fmt.Errorf("nfc draft %s: %w: tag_id is required", d.ID, ErrInvalidDraftPayload)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("draft %s: %w", d.ID, ErrUnknownDraftKind)
	}
}
