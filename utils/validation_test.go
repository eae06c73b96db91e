package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Action        string `validate:"required,permission"`
	Role          string `validate:"omitempty,role"`
	Justification string `validate:"required,min=3"`
}

func TestValidateStruct_Passes(t *testing.T) {
	err := ValidateStruct(sampleRequest{
		Action:        "client:read",
		Role:          "registered_nurse",
		Justification: "scheduled visit",
	})
	assert.NoError(t, err)
}

func TestValidateStruct_UnknownPermission(t *testing.T) {
	err := ValidateStruct(sampleRequest{
		Action:        "root:everything",
		Justification: "scheduled visit",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	fields := GetValidationFields(err)
	assert.Contains(t, fields["Action"], "known permission")
}

func TestValidateStruct_UnknownRole(t *testing.T) {
	err := ValidateStruct(sampleRequest{
		Action:        "client:read",
		Role:          "superuser",
		Justification: "scheduled visit",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidateStruct_RequiredAndMin(t *testing.T) {
	err := ValidateStruct(sampleRequest{Action: "client:read"})
	require.Error(t, err)
	fields := GetValidationFields(err)
	assert.Contains(t, fields, "Justification")
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("2b7a4f9e-93ab-4f6b-9f05-7f3f4c2f0e71"))
	assert.Error(t, ValidateUUID("not-a-uuid"))
}
