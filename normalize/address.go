package normalize

import (
	"strings"
	"unicode"
)

// PostalCode masks a CEP as "00000-000". Seven digits are left-padded (feeds
// that stored the CEP as a number lose the leading zero). Anything else is
// invalid and returns ok=false.
func PostalCode(s string) (string, bool) {
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch len(d) {
	case 8:
	case 7:
		d = "0" + d
	default:
		return "", false
	}
	return d[:5] + "-" + d[5:], true
}

var stateCodes = map[string]string{
	"acre":                "AC",
	"alagoas":             "AL",
	"amapa":               "AP",
	"amazonas":            "AM",
	"bahia":               "BA",
	"ceara":               "CE",
	"distrito federal":    "DF",
	"espirito santo":      "ES",
	"goias":               "GO",
	"maranhao":            "MA",
	"mato grosso":         "MT",
	"mato grosso do sul":  "MS",
	"minas gerais":        "MG",
	"para":                "PA",
	"paraiba":             "PB",
	"parana":              "PR",
	"pernambuco":          "PE",
	"piaui":               "PI",
	"rio de janeiro":      "RJ",
	"rio grande do norte": "RN",
	"rio grande do sul":   "RS",
	"rondonia":            "RO",
	"roraima":             "RR",
	"santa catarina":      "SC",
	"sao paulo":           "SP",
	"sergipe":             "SE",
	"tocantins":           "TO",
}

var validCodes = func() map[string]bool {
	m := make(map[string]bool, len(stateCodes))
	for _, c := range stateCodes {
		m[c] = true
	}
	return m
}()

// StateCode returns the two-letter UF for a state name or code
// ("São Paulo", "sp", "SP"). ok is false for anything else.
func StateCode(s string) (string, bool) {
	f := Fold(s)
	if len(f) == 2 {
		code := strings.ToUpper(f)
		return code, validCodes[code]
	}
	code, ok := stateCodes[f]
	return code, ok
}
