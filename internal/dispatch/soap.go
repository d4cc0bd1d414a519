package dispatch

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lfreitas-dev/hrbridge/internal/store"
)

// SendPause is the flat delay between successive per-record SOAP calls.
const SendPause = time.Second

// DefaultSOAPNamespace is the service namespace of the target's termination
// endpoint.
const DefaultSOAPNamespace = "urn:ifPonto"

// Sleeper abstracts the pacing delay so tests run without wall time.
type Sleeper interface {
	Sleep(d time.Duration)
}

type stdSleeper struct{}

func (stdSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Termination is one event to deliver over SOAP.
type Termination struct {
	EmployeeNo string
	Date       string // DD/MM/YYYY
	FullName   string
}

// Ledger is the at-most-once delivery record consulted before and committed
// after each send. Satisfied by *store.Store.
type Ledger interface {
	Delivered(ctx context.Context, key store.DeliveryKey) (bool, error)
	MarkDelivered(ctx context.Context, key store.DeliveryKey, fullName string, at time.Time) error
}

// SOAPClient posts one termination per call to the target SOAP endpoint.
type SOAPClient struct {
	Client    *http.Client
	URL       string
	ClientID  string
	User      string
	Password  string
	Namespace string
}

// SendTermination posts a single envelope and interprets the response.
// A transport error or non-200 status is an error; a 200 answer is decided
// by the interpretation rule table.
func (c *SOAPClient) SendTermination(ctx context.Context, ev Termination) (Outcome, error) {
	envelope := c.BuildEnvelope(ev)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(envelope))
	if err != nil {
		return Outcome{}, fmt.Errorf("soap send %s: %w", ev.EmployeeNo, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("soap send %s: %w", ev.EmployeeNo, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("soap send %s: %w", ev.EmployeeNo, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Outcome{}, fmt.Errorf("soap send %s: unexpected status %d: %.200s", ev.EmployeeNo, resp.StatusCode, string(body))
	}

	return InterpretSOAP(body), nil
}

// BuildEnvelope renders the per-record termination envelope. All values are
// XML-escaped; the layout matches what the service's WSDL-less endpoint
// actually accepts.
func (c *SOAPClient) BuildEnvelope(ev Termination) []byte {
	ns := c.Namespace
	if ns == "" {
		ns = DefaultSOAPNamespace
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:urn="%s">`, xmlEscape(ns))
	buf.WriteString("\n  <soapenv:Header/>\n  <soapenv:Body>\n    <urn:demissao>\n      <urn:pack>\n")
	fmt.Fprintf(&buf, "        <urn:clientId>%s</urn:clientId>\n", xmlEscape(c.ClientID))
	fmt.Fprintf(&buf, "        <urn:user>%s</urn:user>\n", xmlEscape(c.User))
	fmt.Fprintf(&buf, "        <urn:pass>%s</urn:pass>\n", xmlEscape(c.Password))
	buf.WriteString("        <urn:funcionario>\n")
	fmt.Fprintf(&buf, "          <urn:matricula>%s</urn:matricula>\n", xmlEscape(ev.EmployeeNo))
	fmt.Fprintf(&buf, "          <urn:dtdemissao>%s</urn:dtdemissao>\n", xmlEscape(ev.Date))
	buf.WriteString("        </urn:funcionario>\n      </urn:pack>\n    </urn:demissao>\n  </soapenv:Body>\n</soapenv:Envelope>")
	return buf.Bytes()
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails on a failing writer; bytes.Buffer never does.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// ItemFailure records one per-event dispatch failure for the run summary.
type ItemFailure struct {
	EmployeeNo string `json:"employee_no"`
	Date       string `json:"date"`
	Reason     string `json:"reason"`
}

// SendReport summarizes one termination batch.
type SendReport struct {
	Attempted int           `json:"attempted"`
	Sent      int           `json:"sent"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// TerminationSender delivers termination events one at a time with flat
// pacing, committing each to the ledger individually and immediately on
// success so partial batch failures never block already-succeeded records.
type TerminationSender struct {
	SOAP    *SOAPClient
	Ledger  Ledger
	Sleeper Sleeper
	Now     func() time.Time
	Log     *slog.Logger
}

// SendAll processes the batch sequentially. Failed items are recorded and
// skipped, never retried within the run; without a ledger commit they stay
// candidates for the next run. A pre-send dedup check guards each item even
// when the caller already batch-filtered, since the ledger may have gained
// rows between filter and send.
func (s *TerminationSender) SendAll(ctx context.Context, events []Termination) SendReport {
	log := s.logger()
	report := SendReport{Attempted: len(events)}

	for i, ev := range events {
		if i > 0 {
			s.sleeper().Sleep(SendPause)
		}

		if ev.EmployeeNo == "" || ev.Date == "" {
			report.Failed++
			report.Failures = append(report.Failures, ItemFailure{
				EmployeeNo: ev.EmployeeNo, Date: ev.Date,
				Reason: "incomplete event: missing registration or date",
			})
			continue
		}

		key := store.DeliveryKey{EmployeeNo: ev.EmployeeNo, EventDate: ev.Date}
		delivered, err := s.Ledger.Delivered(ctx, key)
		if err != nil {
			// A ledger read failure degrades to "not delivered"; the
			// commit path's INSERT OR IGNORE keeps repeats harmless.
			log.Warn("ledger lookup failed, proceeding with send", "employee", ev.EmployeeNo, "error", err)
		}
		if delivered {
			log.Info("termination already delivered, skipping", "employee", ev.EmployeeNo, "date", ev.Date)
			report.Skipped++
			continue
		}

		outcome, err := s.SOAP.SendTermination(ctx, ev)
		if err != nil {
			log.Error("termination send failed", "employee", ev.EmployeeNo, "error", err)
			report.Failed++
			report.Failures = append(report.Failures, ItemFailure{
				EmployeeNo: ev.EmployeeNo, Date: ev.Date, Reason: err.Error(),
			})
			continue
		}
		if !outcome.Success {
			log.Error("target rejected termination",
				"employee", ev.EmployeeNo, "rule", string(outcome.Rule), "message", outcome.Message)
			report.Failed++
			report.Failures = append(report.Failures, ItemFailure{
				EmployeeNo: ev.EmployeeNo, Date: ev.Date, Reason: outcome.Message,
			})
			continue
		}

		if outcome.Rule == RuleIndeterminate {
			log.Warn("termination accepted by indeterminate default", "employee", ev.EmployeeNo)
		}
		if err := s.Ledger.MarkDelivered(ctx, key, ev.FullName, s.now()); err != nil {
			// The send succeeded; a failed commit only risks a redundant
			// retry next run. Surface it loudly.
			log.Error("ledger commit failed after successful send", "employee", ev.EmployeeNo, "error", err)
		}
		log.Info("termination delivered", "employee", ev.EmployeeNo, "date", ev.Date, "message", outcome.Message)
		report.Sent++
	}

	return report
}

func (s *TerminationSender) sleeper() Sleeper {
	if s.Sleeper != nil {
		return s.Sleeper
	}
	return stdSleeper{}
}

func (s *TerminationSender) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TerminationSender) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
