package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Locação / Temporada", "locacao temporada"},
		{"  SÃO   PAULO ", "sao paulo"},
		{"Seguro-Fiança", "seguro fianca"},
		{"Residential / Apartment", "residential apartment"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fold(tt.in), tt.in)
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Rua das Flores", TitleCase("RUA DAS FLORES"))
	assert.Equal(t, "São José dos Pinhais", TitleCase("são josé dos pinhais"))
	assert.Equal(t, "Do Centro", TitleCase("do   centro"))
	assert.Equal(t, "", TitleCase("  "))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"R$ 1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"1.500", 1500, true},
		{"1,5", 1.5, true},
		{"0,500", 0.5, true},
		{"10.000.000", 10000000, true},
		{"85 m²", 85, true},
		{"120", 120, true},
		{"72.35", 72.35, true},
		{"450000.00", 450000, true},
		{"1.234.567,89", 1234567.89, true},
		{"2.", 2, true},
		{"-3,5", -3.5, true},
		{"sob consulta", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 0.0001, tt.in)
	}
}

func TestParseCount(t *testing.T) {
	n, ok := ParseCount("3 quartos")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = ParseCount("2.6")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = ParseCount("-1")
	assert.False(t, ok)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"Sim", "1", "true", "YES"} {
		v, ok := ParseBool(s)
		assert.True(t, ok, s)
		assert.True(t, v, s)
	}
	v, ok := ParseBool("Não")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = ParseBool("talvez")
	assert.False(t, ok)
}

func TestPostalCode(t *testing.T) {
	cep, ok := PostalCode("80420000")
	assert.True(t, ok)
	assert.Equal(t, "80420-000", cep)

	cep, ok = PostalCode("1310-100")
	assert.True(t, ok)
	assert.Equal(t, "01310-100", cep)

	cep, ok = PostalCode("80.420-000")
	assert.True(t, ok)
	assert.Equal(t, "80420-000", cep)

	_, ok = PostalCode("123")
	assert.False(t, ok)
}

func TestStateCode(t *testing.T) {
	for in, want := range map[string]string{
		"São Paulo":          "SP",
		"sp":                 "SP",
		"Mato Grosso do Sul": "MS",
		"PARANÁ":             "PR",
		"Distrito Federal":   "DF",
	} {
		got, ok := StateCode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := StateCode("XX")
	assert.False(t, ok)
	_, ok = StateCode("Atlantis")
	assert.False(t, ok)
}
