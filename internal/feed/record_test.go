package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexStringUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"string", `"004"`, "004"},
		{"number", `4`, "4"},
		{"large number", `9165`, "9165"},
		{"float keeps form", `12.5`, "12.5"},
		{"null", `null`, ""},
		{"empty string", `""`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexString
			require.NoError(t, json.Unmarshal([]byte(tt.json), &f))
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestFlexStringRejectsGarbage(t *testing.T) {
	var f FlexString
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &f))
}

func TestEmployeeRecordKeyPadding(t *testing.T) {
	rec := EmployeeRecord{EmployeeNumber: "9165"}
	assert.Equal(t, "009165", rec.Key())

	rec.EmployeeNumber = "1234567"
	assert.Equal(t, "1234567", rec.Key())
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "4", NormalizeCode("004"))
	assert.Equal(t, "4", NormalizeCode("4"))
	assert.Equal(t, "12", NormalizeCode(" 012 "))
	assert.Equal(t, "0", NormalizeCode("000"))
	assert.Equal(t, "0", NormalizeCode(""))
}

func TestFormatDateBR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-03-15T00:00:00", "15/03/2025"},
		{"2025-03-15T23:59:59Z", "15/03/2025"},
		{"2025-03-15", "15/03/2025"},
		{"not-a-date", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDateBR(tt.in), "input %q", tt.in)
	}
}

func TestContactPrefersRootFields(t *testing.T) {
	rec := EmployeeRecord{
		Email: "root@example.com",
		Person: &Person{
			Email: "nested@example.com",
			City:  "Porto Alegre",
		},
	}
	contact := rec.Contact()
	assert.Equal(t, "root@example.com", contact.Email)
	assert.Equal(t, "Porto Alegre", contact.City)
}

func TestFormatSalary(t *testing.T) {
	assert.Equal(t, "3500", FormatSalary(json.Number("3500.0")))
	assert.Equal(t, "3500.75", FormatSalary(json.Number("3500.75")))
	assert.Equal(t, "", FormatSalary(json.Number("")))
}

func TestEmployeeRecordDecodesNestedObjects(t *testing.T) {
	raw := `{
		"codEmpresa": 4,
		"nroMatrExterno": "9165",
		"nomeExtenso": "Maria Souza",
		"situacaoPessoa": [
			{"sitCodSituacao": "01", "sitDataInicio": "2024-01-02T00:00:00", "sitDataFim": null}
		],
		"pessoaFisica": {"pfiCpfnumeroDigito": 5295351180, "pfiEstadoCivil": "S"},
		"pessoaFunc": {"pfuDtInicioContrato": "2024-01-02T00:00:00", "lotacao": {"lotCodlotacao": 12}}
	}`
	var rec EmployeeRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	assert.Equal(t, "4", rec.CompanyCode.String())
	assert.Equal(t, "009165", rec.Key())
	require.Len(t, rec.Statuses, 1)
	assert.Equal(t, "01", rec.Statuses[0].Code.String())
	require.NotNil(t, rec.Physical)
	assert.Equal(t, "5295351180", rec.Physical.CPF.String())
	require.NotNil(t, rec.Job)
	require.NotNil(t, rec.Job.Placement)
	assert.Equal(t, "12", rec.Job.Placement.UnitCode.String())
}
