package tabnet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
)

func TestDiagnosisCodes(t *testing.T) {
	assert.Len(t, DiagnosisCodes, 110)
	assert.Equal(t, "C00", DiagnosisCodes[0])
	assert.Equal(t, "D48", DiagnosisCodes[len(DiagnosisCodes)-1])
	assert.True(t, IsDiagnosisCode("C50"))
	assert.False(t, IsDiagnosisCode("C42"), "C42 is not offered by the panel")
	assert.False(t, IsDiagnosisCode("D08"))
}

func TestAgeBandCode(t *testing.T) {
	code, ok := AgeBandCode("80 anos e mais")
	require.True(t, ok)
	assert.Equal(t, "80+anos+e+mais%7C080-999%7C3", code)

	_, ok = AgeBandCode("90 anos")
	assert.False(t, ok)
	assert.Len(t, AgeBandLabels(), 14)
}

func TestFormEncoder_Totals(t *testing.T) {
	payload, err := FormEncoder{}.Encode(model.Job{Year: 2020, Sex: model.SexAll})
	require.NoError(t, err)

	assert.Contains(t, payload, "&PAno+do+diagn%F3stico=2020%7C2020%7C4&")
	assert.Contains(t, payload, "&XSexo=TODAS_AS_CATEGORIAS__&")
	assert.Contains(t, payload, "&XFaixa+et%E1ria=TODAS_AS_CATEGORIAS__&")
	assert.Contains(t, payload, "&XDiagn%F3stico+Detalhado=TODAS_AS_CATEGORIAS__&")
	assert.True(t, strings.HasPrefix(payload, "Linha=Regi%E3o+-+resid%EAncia"))
	assert.True(t, strings.HasSuffix(payload, "&grafico="))
}

func TestFormEncoder_Filters(t *testing.T) {
	payload, err := FormEncoder{}.Encode(model.Job{Year: 2021, Sex: model.SexFemale, AgeBand: "30 a 34 anos", Diagnosis: "C50"})
	require.NoError(t, err)

	assert.Contains(t, payload, "&XSexo=Feminino%7CF%7C1&")
	assert.Contains(t, payload, "&XFaixa+et%E1ria=30+a+34+anos%7C030-034%7C3&")
	assert.Contains(t, payload, "&XDiagn%F3stico+Detalhado=C50%7CC50%7C3&")
}

func TestFormEncoder_UnknownLabels(t *testing.T) {
	_, err := FormEncoder{}.Encode(model.Job{Year: 2021, Sex: model.SexMale, AgeBand: "centenarians"})
	require.Error(t, err)
	assert.Equal(t, harvesterr.CodeUnknownLabel, harvesterr.GetCode(err))

	_, err = FormEncoder{}.Encode(model.Job{Year: 2021, Sex: "X"})
	require.Error(t, err)
	assert.Equal(t, harvesterr.ErrCategoryConfig, harvesterr.GetCategory(err))
}

func newTestTransport(t *testing.T, srv *httptest.Server) *HTTPTransport {
	t.Helper()
	tr, err := NewHTTPTransport(ClientConfig{PostURL: srv.URL + "/post", SessionURL: srv.URL + "/session", MaxConns: 4})
	require.NoError(t, err)
	return tr
}

func TestHTTPTransport_WarmupThenPost(t *testing.T) {
	var sawCookie atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session":
			http.SetCookie(w, &http.Cookie{Name: "TS01", Value: "abc", Path: "/"})
			w.WriteHeader(http.StatusOK)
		case "/post":
			if c, err := r.Cookie("TS01"); err == nil && c.Value == "abc" {
				sawCookie.Store(true)
			}
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Mozilla/5.0", r.UserAgent())
			assert.Equal(t, Origin, r.Header.Get("Origin"))
			w.Write([]byte("data.addRows([]);"))
		}
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	require.NoError(t, tr.Warmup(context.Background()))

	body, err := tr.Post(context.Background(), "a=b")
	require.NoError(t, err)
	assert.Equal(t, "data.addRows([]);", body)
	assert.True(t, sawCookie.Load(), "session cookie should be replayed on posts")
}

func TestHTTPTransport_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestTransport(t, srv).Post(context.Background(), "a=b")
	require.Error(t, err)
	assert.Equal(t, harvesterr.CodeBadStatus, harvesterr.GetCode(err))
	assert.True(t, harvesterr.IsRetryable(err))
}

func TestHTTPTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestTransport(t, srv).Post(ctx, "a=b")
	require.Error(t, err)
	assert.Equal(t, harvesterr.CodeTimeout, harvesterr.GetCode(err))
	assert.True(t, harvesterr.IsRetryable(err))
}

func TestHTTPTransport_Latin1Body(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		w.Write([]byte("1 Regi\xe3o Norte"))
	}))
	defer srv.Close()

	body, err := newTestTransport(t, srv).Post(context.Background(), "a=b")
	require.NoError(t, err)
	assert.Equal(t, "1 Região Norte", body)
}
