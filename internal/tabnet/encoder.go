package tabnet

import (
	"strconv"
	"strings"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
)

const allCategories = "TODAS_AS_CATEGORIAS__"

// Encoder builds the exact form body for one job
type Encoder interface {
	Encode(job model.Job) (string, error)
}

// FormEncoder is the Encoder for the oncology panel: one row per residence region,
// a single case-count column, filtered by year, sex and the optional age band and
// detailed diagnosis.
type FormEncoder struct{}

// Encode implements Encoder
func (FormEncoder) Encode(job model.Job) (string, error) {
	sex, ok := sexParams[job.Sex]
	if !ok {
		return "", harvesterr.Newf(harvesterr.ErrCategoryConfig, harvesterr.CodeUnknownLabel, "unknown sex %q", job.Sex)
	}

	band := allCategories
	if job.AgeBand != "" {
		code, ok := AgeBandCode(job.AgeBand)
		if !ok {
			return "", harvesterr.Newf(harvesterr.ErrCategoryConfig, harvesterr.CodeUnknownLabel, "unknown age band %q", job.AgeBand)
		}
		band = code
	}

	diagnosis := allCategories
	if job.Diagnosis != "" {
		diagnosis = job.Diagnosis + "%7C" + job.Diagnosis + "%7C3"
	}

	year := strconv.Itoa(job.Year)
	fields := [][2]string{
		{"Linha", "Regi%E3o+-+resid%EAncia%7CSUBSTR%28CO_MUNICIPIO_RESIDENCIA%2C1%2C1%29%7C1%7Cterritorio%5Cbr_regiao.cnv"},
		{"Coluna", "--N%E3o-Ativa--"},
		{"Incremento", "Casos%7C%3D+count%28*%29"},
		{"PAno+do+diagn%F3stico", year + "%7C" + year + "%7C4"},
		{"XRegi%E3o+-+resid%EAncia", allCategories},
		{"XRegi%E3o+-+diagn%F3stico", allCategories},
		{"XRegi%E3o+-+tratamento", allCategories},
		{"XUF+da+resid%EAncia", allCategories},
		{"XUF+do+diagn%F3stico", allCategories},
		{"XUF+do+tratamento", allCategories},
		{"SRegi%E3o+de+Saude+-+resid%EAncia", allCategories},
		{"SRegi%E3o+de+Saude+-+diagn%F3stico", allCategories},
		{"SRegi%E3o+de+Saude+-+tratamento", allCategories},
		{"SMunic%ED%ADpio+da+resid%EAncia", allCategories},
		{"SMunic%ED%ADpio+do+diagn%F3stico", allCategories},
		{"SMunic%ED%ADpio+do+tratamento", allCategories},
		{"XDiagn%F3stico", allCategories},
		{"XDiagn%F3stico+Detalhado", diagnosis},
		{"XSexo", sex},
		{"XFaixa+et%E1ria", band},
		{"XIdade", allCategories},
		{"XM%EAs%2FAno+do+diagn%F3stico", allCategories},
		{"nomedef", "PAINEL_ONCO%2FPAINEL_ONCOLOGIABR.def"},
		{"grafico", ""},
	}

	// Keys and values are already in the service's latin-1 percent encoding,
	// so url.Values would double-escape them.
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f[0])
		b.WriteByte('=')
		b.WriteString(f[1])
	}
	return b.String(), nil
}
