package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportRecordKeepsUnknownFieldsAsAttributes(t *testing.T) {
	var rec ExportRecord
	err := json.Unmarshal([]byte(`{
		"addedBy": "s@example.com",
		"price": 100,
		"description": "fine saffron",
		"availableQuantity": 5,
		"originCountry": "IR",
		"attributes": {"grade": "A"}
	}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, "s@example.com", rec.AddedBy)
	assert.Equal(t, 100.0, rec.Price)
	assert.Equal(t, 5, rec.AvailableQuantity)
	assert.Equal(t, "IR", rec.OriginCountry)
	assert.Equal(t, Attributes{"grade": "A", "description": "fine saffron"}, rec.Attributes)
}

func TestExportRecordExplicitAttributesWin(t *testing.T) {
	var rec ExportRecord
	require.NoError(t, json.Unmarshal([]byte(`{"grade":"B","attributes":{"grade":"A"}}`), &rec))
	assert.Equal(t, Attributes{"grade": "A"}, rec.Attributes)
}

func TestExportRecordSnakeCaseBeatsAlias(t *testing.T) {
	var rec ExportRecord
	require.NoError(t, json.Unmarshal([]byte(`{"available_quantity":3,"availableQuantity":7}`), &rec))
	assert.Equal(t, 3, rec.AvailableQuantity)
	assert.Nil(t, rec.Attributes)
}

func TestExportRecordRoundTripAddsNoAttributes(t *testing.T) {
	in := ExportRecord{ID: "e1", AddedBy: "s@example.com", Name: "Cumin", Price: 7}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out ExportRecord
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestExportPatchFoldsUnknownFields(t *testing.T) {
	var patch ExportPatch
	require.NoError(t, json.Unmarshal([]byte(`{"availableQuantity":4,"description":"smoked"}`), &patch))

	require.NotNil(t, patch.AvailableQuantity)
	assert.Equal(t, 4, *patch.AvailableQuantity)
	assert.Equal(t, Attributes{"description": "smoked"}, patch.Attributes)
	assert.False(t, patch.Empty())
}

func TestExportRecordRejectsMalformedBody(t *testing.T) {
	var rec ExportRecord
	assert.Error(t, json.Unmarshal([]byte(`{"price":"cheap"}`), &rec))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &rec))
}
