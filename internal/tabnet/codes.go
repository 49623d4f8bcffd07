// Package tabnet talks to the oncology panel of the TabNet tabulation service:
// the static code tables, the form payload encoder and the HTTP transport.
package tabnet

import (
	"fmt"

	"tabnet-harvester/internal/model"
)

// Service endpoints
const (
	PostURL    = "http://tabnet.datasus.gov.br/cgi/webtabx.exe?PAINEL_ONCO/PAINEL_ONCOLOGIABR.def"
	SessionURL = "http://tabnet.datasus.gov.br/cgi/dhdat.exe?PAINEL_ONCO/PAINEL_ONCOLOGIABR.def"
	Origin     = "http://tabnet.datasus.gov.br"
)

// Regions maps the numeric region code in a result row to its canonical name
var Regions = map[int]string{
	1: "Norte",
	2: "Nordeste",
	3: "Sudeste",
	4: "Sul",
	5: "Centro-Oeste",
}

// RegionNames lists the canonical names in code order
var RegionNames = []string{"Norte", "Nordeste", "Sudeste", "Sul", "Centro-Oeste"}

var sexParams = map[model.Sex]string{
	model.SexAll:    allCategories,
	model.SexMale:   "Masculino%7CM%7C1",
	model.SexFemale: "Feminino%7CF%7C1",
}

// AgeBand pairs the label used in the result tree with the service code
type AgeBand struct {
	Label string
	Code  string
}

// AgeBands is the full list of age bands in service order
var AgeBands = []AgeBand{
	{"0 a 19 anos", "0+a+19+anos%7C000-019%7C3"},
	{"20 a 24 anos", "20+a+24+anos%7C020-024%7C3"},
	{"25 a 29 anos", "25+a+29+anos%7C025-029%7C3"},
	{"30 a 34 anos", "30+a+34+anos%7C030-034%7C3"},
	{"35 a 39 anos", "35+a+39+anos%7C035-039%7C3"},
	{"40 a 44 anos", "40+a+44+anos%7C040-044%7C3"},
	{"45 a 49 anos", "45+a+49+anos%7C045-049%7C3"},
	{"50 a 54 anos", "50+a+54+anos%7C050-054%7C3"},
	{"55 a 59 anos", "55+a+59+anos%7C055-059%7C3"},
	{"60 a 64 anos", "60+a+64+anos%7C060-064%7C3"},
	{"65 a 69 anos", "65+a+69+anos%7C065-069%7C3"},
	{"70 a 74 anos", "70+a+74+anos%7C070-074%7C3"},
	{"75 a 79 anos", "75+a+79+anos%7C075-079%7C3"},
	{"80 anos e mais", "80+anos+e+mais%7C080-999%7C3"},
}

// AgeBandCode returns the service code for an age-band label
func AgeBandCode(label string) (string, bool) {
	for _, b := range AgeBands {
		if b.Label == label {
			return b.Code, true
		}
	}
	return "", false
}

// AgeBandLabels returns every age-band label in service order
func AgeBandLabels() []string {
	labels := make([]string, len(AgeBands))
	for i, b := range AgeBands {
		labels[i] = b.Label
	}
	return labels
}

// DiagnosisCodes is the detailed ICD-10 list the panel accepts, in service order
var DiagnosisCodes = buildDiagnosisCodes()

func buildDiagnosisCodes() []string {
	var codes []string
	add := func(prefix string, nums ...int) {
		for _, n := range nums {
			codes = append(codes, fmt.Sprintf("%s%02d", prefix, n))
		}
	}
	span := func(from, to int) []int {
		nums := make([]int, 0, to-from+1)
		for n := from; n <= to; n++ {
			nums = append(nums, n)
		}
		return nums
	}

	add("C", span(0, 26)...)
	add("C", 30, 31, 32, 33, 34, 37, 38, 39)
	add("C", 40, 41, 43, 44, 45, 46, 47, 48, 49)
	add("C", span(50, 85)...)
	add("C", 88)
	add("C", span(90, 97)...)
	add("D", span(0, 7)...)
	add("D", 9)
	add("D", span(37, 48)...)
	return codes
}

// IsDiagnosisCode reports whether code is in the panel's list
func IsDiagnosisCode(code string) bool {
	for _, c := range DiagnosisCodes {
		if c == code {
			return true
		}
	}
	return false
}
