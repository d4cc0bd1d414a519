package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// Catalog maps normalized and raw situation codes to human-readable labels
// used for the generic leave category.
type Catalog map[string]string

// Describe resolves a situation code to its label. Unknown codes get a
// generic label; known reports whether the code was actually mapped so the
// caller can surface novel codes.
func (c Catalog) Describe(code string) (label string, known bool) {
	if label, ok := c[code]; ok && label != "" {
		return label, true
	}
	return fmt.Sprintf("Afastamento %s", code), false
}

// catalogItem is one entry of the supplementary situation endpoint. The
// reserve field carries the code the status history actually uses; the
// detail-subject code is an alternate zero-padded spelling of the same code.
type catalogItem struct {
	Reserve    FlexString `json:"cadReserva"`
	DetailCode FlexString `json:"cadCodDetAssunto"`
	Label      string     `json:"cadDenominacao"`
}

// CatalogLoader fetches the situation code catalog, preferring a local file
// snapshot over the supplementary API. A successful API fetch rewrites the
// file so the next run works offline.
type CatalogLoader struct {
	Client    *http.Client
	URL       string
	Token     string
	CacheFile string
	Log       *slog.Logger
}

// Load returns the catalog, or an empty one when neither source is usable.
// Catalog errors never fail a run; they only degrade leave labels.
func (l *CatalogLoader) Load(ctx context.Context) Catalog {
	log := l.logger()

	if l.CacheFile != "" {
		if catalog, ok := l.loadFromFile(log); ok {
			return catalog
		}
	}

	if l.URL == "" {
		return Catalog{}
	}
	body, err := l.fetch(ctx)
	if err != nil {
		log.Warn("situation catalog fetch failed", "error", err)
		return Catalog{}
	}

	var items []catalogItem
	if err := json.Unmarshal(body, &items); err != nil {
		log.Warn("situation catalog is not a JSON list", "error", err)
		return Catalog{}
	}

	if l.CacheFile != "" {
		if err := os.WriteFile(l.CacheFile, body, 0o644); err != nil {
			log.Warn("situation catalog snapshot write failed", "path", l.CacheFile, "error", err)
		}
	}

	return buildCatalog(items)
}

func (l *CatalogLoader) loadFromFile(log *slog.Logger) (Catalog, bool) {
	body, err := os.ReadFile(l.CacheFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("situation catalog file read failed", "path", l.CacheFile, "error", err)
		}
		return nil, false
	}
	var items []catalogItem
	if len(body) == 0 || json.Unmarshal(body, &items) != nil {
		log.Warn("situation catalog file is unusable, falling back to API", "path", l.CacheFile)
		return nil, false
	}
	return buildCatalog(items), true
}

func (l *CatalogLoader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+l.Token)
	req.Header.Set("Accept", "text/plain")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (l *CatalogLoader) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default()
}

// buildCatalog indexes labels by every spelling of the code that can appear
// in a status history: the reserve code, the detail code, and the detail
// code with leading zeros stripped.
func buildCatalog(items []catalogItem) Catalog {
	catalog := Catalog{}
	for _, item := range items {
		if code := item.Reserve.String(); code != "" {
			catalog[code] = item.Label
		}
		if code := item.DetailCode.String(); code != "" {
			catalog[code] = item.Label
			if normalized := NormalizeCode(code); normalized != code {
				catalog[normalized] = item.Label
			}
		}
	}
	return catalog
}
