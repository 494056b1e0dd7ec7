package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDraftID_UniqueWithinSameMillisecond(t *testing.T) {
	now := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewDraftID(DraftKindOCR, now)
		assert.False(t, seen[id], "duplicate draft ID %s", id)
		seen[id] = true
	}
}

func TestDraftKind_FromIDPrefix(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		wantKind DraftKind
		wantOK   bool
	}{
		{"ocr draft", "ocr_1755682200000_ab12cd34", DraftKindOCR, true},
		{"nfc draft", "nfc_1755682200000_ab12cd34", DraftKindNFC, true},
		{"unknown prefix", "pdf_1755682200000_ab12cd34", "", false},
		{"no separator", "justanid", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := Draft{ID: tt.id}.Kind()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestDraft_DecodePayload_OCR(t *testing.T) {
	d := Draft{
		ID: "ocr_1755682200000_ab12cd34",
		Data: map[string]any{
			"medication": "Metformin",
			"dosage":     "500mg",
			"confidence": 0.92,
		},
	}

	payload, err := d.DecodePayload()
	require.NoError(t, err)

	ocr, ok := payload.(OCRDraftPayload)
	require.True(t, ok)
	assert.Equal(t, "Metformin", ocr.Medication)
	assert.Equal(t, "500mg", ocr.Dosage)
	assert.InDelta(t, 0.92, ocr.Confidence, 1e-9)
}

func TestDraft_DecodePayload_OCRMissingMedication(t *testing.T) {
	d := Draft{
		ID:   "ocr_1755682200000_ab12cd34",
		Data: map[string]any{"dosage": "500mg"},
	}

	_, err := d.DecodePayload()
	require.ErrorIs(t, err, ErrInvalidDraftPayload)
}

func TestDraft_DecodePayload_NFCMissingTag(t *testing.T) {
	d := Draft{
		ID:   "nfc_1755682200000_ab12cd34",
		Data: map[string]any{"medication_code": "B01AC06"},
	}

	_, err := d.DecodePayload()
	require.ErrorIs(t, err, ErrInvalidDraftPayload)
}

func TestDraft_DecodePayload_UnknownKind(t *testing.T) {
	d := Draft{ID: "pdf_1755682200000_ab12cd34"}

	_, err := d.DecodePayload()
	require.ErrorIs(t, err, ErrUnknownDraftKind)
}
