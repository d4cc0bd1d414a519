package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfreitas-dev/hrbridge/internal/store"
)

func TestBuildEnvelopeGolden(t *testing.T) {
	c := &SOAPClient{ClientID: "cid-1", User: "integrador", Password: "s3cret"}
	envelope := c.BuildEnvelope(Termination{EmployeeNo: "009165", Date: "15/03/2025"})

	g := goldie.New(t)
	g.Assert(t, "termination_envelope", envelope)
}

func TestBuildEnvelopeEscapesValues(t *testing.T) {
	c := &SOAPClient{ClientID: "a&b", User: "<u>", Password: `p"w`}
	envelope := string(c.BuildEnvelope(Termination{EmployeeNo: "1<2", Date: "15/03/2025"}))

	assert.Contains(t, envelope, "<urn:clientId>a&amp;b</urn:clientId>")
	assert.Contains(t, envelope, "<urn:user>&lt;u&gt;</urn:user>")
	assert.Contains(t, envelope, "<urn:matricula>1&lt;2</urn:matricula>")
	assert.NotContains(t, envelope, "<u>")
}

func TestBuildEnvelopeCustomNamespace(t *testing.T) {
	c := &SOAPClient{Namespace: "urn:other"}
	envelope := string(c.BuildEnvelope(Termination{}))
	assert.Contains(t, envelope, `xmlns:urn="urn:other"`)
}

type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
}

func openTestLedger(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// soapServer answers success for every matricula except the ones listed in
// reject.
func soapServer(t *testing.T, reject map[string]bool) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Content-Type"), "text/xml")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		matricula := extractBetween(string(body), "<urn:matricula>", "</urn:matricula>")
		seen = append(seen, matricula)
		if reject[matricula] {
			fmt.Fprint(w, `<resp><descricao>Erro ao processar demissao</descricao></resp>`)
			return
		}
		fmt.Fprint(w, `<resp><descricao>Demissao gravada com sucesso</descricao></resp>`)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func extractBetween(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return ""
	}
	return rest[:j]
}

func TestSendAllCommitsPerSuccess(t *testing.T) {
	srv, seen := soapServer(t, map[string]bool{"000002": true})
	st := openTestLedger(t)
	sleeper := &recordingSleeper{}

	sender := &TerminationSender{
		SOAP:    &SOAPClient{URL: srv.URL, ClientID: "c", User: "u", Password: "p"},
		Ledger:  st,
		Sleeper: sleeper,
	}
	events := []Termination{
		{EmployeeNo: "000001", Date: "15/03/2025", FullName: "First"},
		{EmployeeNo: "000002", Date: "16/03/2025", FullName: "Second"},
		{EmployeeNo: "000003", Date: "17/03/2025", FullName: "Third"},
	}
	report := sender.SendAll(context.Background(), events)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "000002", report.Failures[0].EmployeeNo)
	assert.Equal(t, []string{"000001", "000002", "000003"}, *seen)

	// Pacing between sends, not before the first.
	assert.Len(t, sleeper.sleeps, 2)
	for _, d := range sleeper.sleeps {
		assert.Equal(t, SendPause, d)
	}

	// Only the successes reached the ledger; the failure stays pending.
	ctx := context.Background()
	for no, date := range map[string]string{"000001": "15/03/2025", "000003": "17/03/2025"} {
		delivered, err := st.Delivered(ctx, store.DeliveryKey{EmployeeNo: no, EventDate: date})
		require.NoError(t, err)
		assert.True(t, delivered, "employee %s", no)
	}
	delivered, err := st.Delivered(ctx, store.DeliveryKey{EmployeeNo: "000002", EventDate: "16/03/2025"})
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestSendAllSkipsAlreadyDelivered(t *testing.T) {
	srv, seen := soapServer(t, nil)
	st := openTestLedger(t)

	sender := &TerminationSender{
		SOAP:    &SOAPClient{URL: srv.URL, ClientID: "c", User: "u", Password: "p"},
		Ledger:  st,
		Sleeper: &recordingSleeper{},
	}
	events := []Termination{{EmployeeNo: "000001", Date: "15/03/2025", FullName: "First"}}

	first := sender.SendAll(context.Background(), events)
	assert.Equal(t, 1, first.Sent)

	// The second run never re-sends: at most once per (employee, date).
	second := sender.SendAll(context.Background(), events)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, *seen, 1)
}

func TestSendAllRejectsIncompleteEvents(t *testing.T) {
	srv, seen := soapServer(t, nil)
	st := openTestLedger(t)

	sender := &TerminationSender{
		SOAP:    &SOAPClient{URL: srv.URL, ClientID: "c", User: "u", Password: "p"},
		Ledger:  st,
		Sleeper: &recordingSleeper{},
	}
	report := sender.SendAll(context.Background(), []Termination{
		{EmployeeNo: "", Date: "15/03/2025"},
		{EmployeeNo: "000001", Date: ""},
	})

	assert.Equal(t, 2, report.Failed)
	assert.Empty(t, *seen, "incomplete events never reach the endpoint")
}

func TestSendTerminationTransportError(t *testing.T) {
	srv, _ := soapServer(t, nil)
	srv.Close()

	c := &SOAPClient{URL: srv.URL, ClientID: "c", User: "u", Password: "p"}
	_, err := c.SendTermination(context.Background(), Termination{EmployeeNo: "000001", Date: "15/03/2025"})
	require.Error(t, err)
}
