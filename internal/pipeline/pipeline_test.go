package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfreitas-dev/hrbridge/internal/auth"
	"github.com/lfreitas-dev/hrbridge/internal/cache"
	"github.com/lfreitas-dev/hrbridge/internal/dispatch"
	"github.com/lfreitas-dev/hrbridge/internal/feed"
	"github.com/lfreitas-dev/hrbridge/internal/store"
	"github.com/lfreitas-dev/hrbridge/internal/testutil"
)

const feedPage = `[
	{
		"codEmpresa": 4, "nroMatrExterno": "1001", "nomeExtenso": "Ana Lima",
		"situacaoPessoa": [{"sitCodSituacao": "1", "sitDataInicio": "2024-01-02T00:00:00"}],
		"pessoaFisFunc": {"pffCodCargo": "10", "pffDescricaoCargo": "Analista"},
		"pessoaFunc": {"lotacao": {"lotCodlotacao": "100", "lotDenominacao": "Administrativo"}}
	},
	{
		"codEmpresa": 4, "nroMatrExterno": "1002", "nomeExtenso": "Bruno Reis",
		"situacaoPessoa": [{"sitCodSituacao": "3", "sitDataInicio": "2025-03-15T00:00:00"}],
		"pessoaFisFunc": {"pffCodCargo": "20", "pffDescricaoCargo": "Tecnico"},
		"pessoaFunc": {"lotacao": {"lotCodlotacao": "200", "lotDenominacao": "Operacoes"}}
	},
	{
		"codEmpresa": 4, "nroMatrExterno": "1003", "nomeExtenso": "Carla Dias",
		"situacaoPessoa": [
			{"sitCodSituacao": "1", "sitDataInicio": "2024-01-02T00:00:00"},
			{"sitCodSituacao": "2", "sitDataInicio": "2025-07-01T00:00:00", "sitDataFim": "2025-07-30T00:00:00"}
		],
		"pessoaFisFunc": {"pffCodCargo": "10", "pffDescricaoCargo": "Analista"},
		"pessoaFunc": {"lotacao": {"lotCodlotacao": "100", "lotDenominacao": "Administrativo"}}
	}
]`

type fixture struct {
	runner    *Runner
	store     *store.Store
	feedHits  *int
	uploads   *[]string
	soapCalls *[]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	feedHits := 0
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feedHits++
		assert.Equal(t, "Bearer static-token-abc", r.Header.Get("Authorization"))
		fmt.Fprint(w, feedPage)
	}))
	t.Cleanup(feedSrv.Close)

	var uploads []string
	restSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("arquivo")
		require.NoError(t, err)
		uploads = append(uploads, r.FormValue("pag")+"/"+header.Filename)
		fmt.Fprint(w, `{"success": true, "ok": 1}`)
	}))
	t.Cleanup(restSrv.Close)

	var soapCalls []string
	soapSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		soapCalls = append(soapCalls, string(body))
		fmt.Fprint(w, `<resp><descricao>Demissao gravada com sucesso</descricao></resp>`)
	}))
	t.Cleanup(soapSrv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner := &Runner{
		Tokens:  &auth.SourceTokenProvider{Static: "static-token-abc"},
		Fetcher: &feed.Fetcher{BaseURL: feedSrv.URL, Sleeper: &testutil.RecordingSleeper{}},
		Cache:   cache.New(st, time.Hour, nil),
		Store:   st,
		REST: &dispatch.RESTClient{
			URL: restSrv.URL, User: "integrador", TokenBase: "base",
		},
		Sender: &dispatch.TerminationSender{
			SOAP:    &dispatch.SOAPClient{URL: soapSrv.URL, ClientID: "c", User: "u", Password: "p"},
			Ledger:  st,
			Sleeper: &testutil.RecordingSleeper{},
		},
		Sleeper: &testutil.RecordingSleeper{},
	}
	return &fixture{
		runner:    runner,
		store:     st,
		feedHits:  &feedHits,
		uploads:   &uploads,
		soapCalls: &soapCalls,
	}
}

func stageByName(t *testing.T, report *Report, stage Stage) StageResult {
	t.Helper()
	for _, sr := range report.Stages {
		if sr.Stage == stage {
			return sr
		}
	}
	t.Fatalf("stage %s not in report", stage)
	return StageResult{}
}

func TestRunAllStages(t *testing.T) {
	fx := newFixture(t)
	report, err := fx.runner.Run(context.Background(), AllStages)
	require.NoError(t, err)

	assert.Equal(t, 3, report.SourceRecords)
	assert.False(t, report.CacheHit)
	require.Len(t, report.Stages, 6)

	roles := stageByName(t, report, StageRoles)
	assert.Equal(t, 2, roles.Records, "duplicate role codes collapse to one row")
	assert.Equal(t, 2, roles.Sent)

	departments := stageByName(t, report, StageDepartments)
	assert.Equal(t, 2, departments.Records, "duplicate unit codes collapse to one row")
	assert.Equal(t, 2, departments.Sent)

	employees := stageByName(t, report, StageEmployees)
	assert.Equal(t, 2, employees.Records, "terminated employee excluded from active")
	assert.Equal(t, 2, employees.Sent)

	vacations := stageByName(t, report, StageVacations)
	assert.Equal(t, 1, vacations.Sent)

	leaves := stageByName(t, report, StageLeaves)
	assert.Equal(t, 0, leaves.Records, "empty stage is a successful no-op")

	terminations := stageByName(t, report, StageTerminations)
	assert.Equal(t, 1, terminations.Sent)

	assert.Equal(t, []string{
		"configuracao_cargo/cargos.csv",
		"configuracao_depto/departamentos.csv",
		"funcionario_cadastrar/funcionarios.csv",
		"ponto_afastamento/ferias.csv",
	}, *fx.uploads)

	require.Len(t, *fx.soapCalls, 1)
	assert.Contains(t, (*fx.soapCalls)[0], "<urn:matricula>001002</urn:matricula>")
	assert.Contains(t, (*fx.soapCalls)[0], "<urn:dtdemissao>15/03/2025</urn:dtdemissao>")
}

func TestRunSecondPassUsesCacheAndLedger(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.runner.Run(context.Background(), AllStages)
	require.NoError(t, err)
	firstFeedHits := *fx.feedHits

	report, err := fx.runner.Run(context.Background(), AllStages)
	require.NoError(t, err)

	assert.True(t, report.CacheHit)
	assert.Equal(t, firstFeedHits, *fx.feedHits, "cache hit must not refetch")

	terminations := stageByName(t, report, StageTerminations)
	assert.Equal(t, 0, terminations.Sent)
	assert.Equal(t, 1, terminations.Skipped, "delivered termination is filtered out")
	assert.Len(t, *fx.soapCalls, 1, "the SOAP endpoint saw exactly one delivery")
}

func TestRunEmptyFetchIsNotCached(t *testing.T) {
	fx := newFixture(t)
	healthyURL := fx.runner.Fetcher.BaseURL

	// A feed that refuses connections yields an empty fetch, not an error.
	deadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadSrv.Close()
	fx.runner.Fetcher.BaseURL = deadSrv.URL

	report, err := fx.runner.Run(context.Background(), []Stage{StageEmployees})
	require.NoError(t, err)
	assert.Equal(t, 0, report.SourceRecords)
	assert.False(t, report.CacheHit)

	snap, err := fx.store.ReadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap, "empty fetch must not be written to the snapshot")

	// The source recovers: the next run must refetch instead of serving the
	// empty result from either cache tier.
	fx.runner.Fetcher.BaseURL = healthyURL
	report, err = fx.runner.Run(context.Background(), []Stage{StageEmployees})
	require.NoError(t, err)
	assert.False(t, report.CacheHit)
	assert.Equal(t, 3, report.SourceRecords)
	assert.Equal(t, 1, *fx.feedHits, "recovered source was queried")
}

func TestRunSingleStage(t *testing.T) {
	fx := newFixture(t)
	report, err := fx.runner.Run(context.Background(), []Stage{StageVacations})
	require.NoError(t, err)

	require.Len(t, report.Stages, 1)
	assert.Equal(t, StageVacations, report.Stages[0].Stage)
	assert.Equal(t, []string{"ponto_afastamento/ferias.csv"}, *fx.uploads)
}

func TestRunStageFailureDoesNotStopLaterStages(t *testing.T) {
	fx := newFixture(t)

	// Point the REST client at a dead endpoint; SOAP stays healthy.
	deadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer deadSrv.Close()
	fx.runner.REST.URL = deadSrv.URL

	report, err := fx.runner.Run(context.Background(), AllStages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage employees")

	terminations := stageByName(t, report, StageTerminations)
	assert.Equal(t, 1, terminations.Sent, "termination stage still ran")
}

func TestRunWritesReportFile(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()
	fx.runner.ReportDir = dir

	report, err := fx.runner.Run(context.Background(), []Stage{StageEmployees})
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)

	path := filepath.Join(dir, "sync-"+report.RunID+".json")
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"stage": "employees"`)
}

func TestRunWithoutSenderFailsTerminationStage(t *testing.T) {
	fx := newFixture(t)
	fx.runner.Sender = nil

	report, err := fx.runner.Run(context.Background(), []Stage{StageTerminations})
	require.Error(t, err)
	sr := stageByName(t, report, StageTerminations)
	assert.True(t, strings.Contains(sr.Error, "not configured"))
}
