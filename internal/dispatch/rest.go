package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/lfreitas-dev/hrbridge/internal/auth"
)

// importCommand is the fixed import command the target's upload endpoint
// dispatches on.
const importCommand = "importar_cad"

// Target import pages (categories). The page selects which import the CSV
// feeds.
const (
	PageRoles       = "configuracao_cargo"
	PageDepartments = "configuracao_depto"
	PageEmployees   = "funcionario_cadastrar"
	PageAbsences    = "ponto_afastamento"
)

// UploadResult is the interpreted outcome of a successful multipart import.
type UploadResult struct {
	// Accepted is the record count the target reported as imported, when
	// the response carried one.
	Accepted int
}

// RESTClient uploads category CSV files to the target's multipart import
// endpoint. Authentication is a user header plus the date-rolling signature,
// recomputed on every call.
type RESTClient struct {
	Client    *http.Client
	URL       string
	User      string
	TokenBase string
	Now       func() time.Time
	Log       *slog.Logger
}

// restEnvelope is the JSON response of the import endpoint. Success defaults
// to true when the field is absent; only an explicit false is a failure.
type restEnvelope struct {
	Success *bool           `json:"success"`
	OK      int             `json:"ok"`
	Info    json.RawMessage `json:"info"`
}

// Upload sends one category table as a multipart CSV import. Any failure
// (transport, non-200, non-JSON body, or an explicit success=false) is an
// error; these uploads are treated as idempotent/overwritable by the target
// and simply retried on the next run.
func (c *RESTClient) Upload(ctx context.Context, page, filename string, table Table) (*UploadResult, error) {
	csvBody, err := table.Encode()
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", page, err)
	}

	body, contentType, err := buildMultipart(page, filename, csvBody)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", page, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", page, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("user", c.User)
	req.Header.Set("token", auth.TargetSignature(c.TokenBase, c.now()))

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", page, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", page, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload %s: unexpected status %d", page, resp.StatusCode)
	}

	var envelope restEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("upload %s: response is not JSON: %.200s", page, string(raw))
	}
	if envelope.Success != nil && !*envelope.Success {
		c.logger().Error("target rejected import", "page", page, "response", string(raw))
		return nil, fmt.Errorf("upload %s: target reported failure: %s", page, string(raw))
	}

	c.logger().Info("import accepted", "page", page, "rows", len(table.Rows), "accepted", envelope.OK)
	return &UploadResult{Accepted: envelope.OK}, nil
}

// buildMultipart assembles the fixed form fields plus the CSV file part.
func buildMultipart(page, filename string, csvBody []byte) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"pag":       page,
		"cmd":       importCommand,
		"separador": ";",
	}
	for _, name := range []string{"pag", "cmd", "separador"} {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", err
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="arquivo"; filename="%s"`, filename))
	header.Set("Content-Type", "text/csv")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(csvBody); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *RESTClient) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *RESTClient) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *RESTClient) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
