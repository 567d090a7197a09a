package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maternar/sync-engine/internal/domain"
)

func TestPayloadValidator_AllSchemasCompile(t *testing.T) {
	_, err := NewPayloadValidator()
	require.NoError(t, err)
}

func TestPayloadValidator_Gestante(t *testing.T) {
	v, err := NewPayloadValidator()
	require.NoError(t, err)

	valid := json.RawMessage(`{
		"documento": "1052938411",
		"tipo_documento": "CC",
		"nombres": "Ana Maria",
		"apellidos": "Rodriguez",
		"telefono": "3001234567",
		"semanas_gestacion": 24,
		"riesgo": "alto"
	}`)
	assert.NoError(t, v.Validate(domain.EntityGestante, valid))

	missingRequired := json.RawMessage(`{"documento": "1052938411"}`)
	err = v.Validate(domain.EntityGestante, missingRequired)
	assert.ErrorIs(t, err, domain.ErrValidation)

	badEnum := json.RawMessage(`{
		"documento": "1052938411",
		"nombres": "Ana",
		"apellidos": "R",
		"riesgo": "critico"
	}`)
	assert.ErrorIs(t, v.Validate(domain.EntityGestante, badEnum), domain.ErrValidation)
}

func TestPayloadValidator_Control(t *testing.T) {
	v, err := NewPayloadValidator()
	require.NoError(t, err)

	valid := json.RawMessage(`{
		"gestante_id": "g1",
		"fecha": "2026-08-20",
		"semana_gestacion": 30,
		"peso_kg": 68.5,
		"presion_sistolica": 120,
		"presion_diastolica": 80
	}`)
	assert.NoError(t, v.Validate(domain.EntityControl, valid))

	negativeWeight := json.RawMessage(`{"gestante_id": "g1", "fecha": "2026-08-20", "peso_kg": -3}`)
	assert.ErrorIs(t, v.Validate(domain.EntityControl, negativeWeight), domain.ErrValidation)
}

func TestPayloadValidator_UnknownTypeAndBadInput(t *testing.T) {
	v, err := NewPayloadValidator()
	require.NoError(t, err)

	assert.ErrorIs(t, v.Validate("paciente", json.RawMessage(`{}`)), domain.ErrUnknownEntityType)
	assert.ErrorIs(t, v.Validate(domain.EntityGestante, nil), domain.ErrValidation)
	assert.ErrorIs(t, v.Validate(domain.EntityGestante, json.RawMessage(`{broken`)), domain.ErrValidation)
}

func TestPayloadValidator_CachesRepeatedPayloads(t *testing.T) {
	v, err := NewPayloadValidator()
	require.NoError(t, err)

	payload := json.RawMessage(`{"nombre": "Florencia", "departamento": "Caqueta", "zona": "rural"}`)
	require.NoError(t, v.Validate(domain.EntityMunicipio, payload))
	// Second call served from the memo; must give the same answer
	assert.NoError(t, v.Validate(domain.EntityMunicipio, payload))
}

func TestItemValidator(t *testing.T) {
	iv := NewItemValidator()

	valid := domain.PushItem{
		EntityType: domain.EntityGestante,
		EntityID:   "g1",
		Operation:  domain.OpUpdate,
		Data:       json.RawMessage(`{"telefono":"300"}`),
		Version:    2,
	}
	assert.NoError(t, iv.ValidateItem(valid))

	tests := []struct {
		name string
		item domain.PushItem
		want error
	}{
		{
			"unknown entity type",
			domain.PushItem{EntityType: "paciente", EntityID: "x", Operation: domain.OpCreate, Data: json.RawMessage(`{}`)},
			domain.ErrUnknownEntityType,
		},
		{
			"missing entity id",
			domain.PushItem{EntityType: domain.EntityGestante, Operation: domain.OpCreate, Data: json.RawMessage(`{}`)},
			domain.ErrValidation,
		},
		{
			"bad operation",
			domain.PushItem{EntityType: domain.EntityGestante, EntityID: "g1", Operation: "upsert", Data: json.RawMessage(`{}`)},
			domain.ErrValidation,
		},
		{
			"negative version",
			domain.PushItem{EntityType: domain.EntityGestante, EntityID: "g1", Operation: domain.OpUpdate, Data: json.RawMessage(`{}`), Version: -1},
			domain.ErrValidation,
		},
		{
			"update without payload",
			domain.PushItem{EntityType: domain.EntityGestante, EntityID: "g1", Operation: domain.OpUpdate, Version: 1},
			domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, iv.ValidateItem(tt.item), tt.want)
		})
	}

	// Deletes carry no payload
	del := domain.PushItem{EntityType: domain.EntityControl, EntityID: "c1", Operation: domain.OpDelete, Version: 3}
	assert.NoError(t, iv.ValidateItem(del))
}
