package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/metrics"
)

const (
	DefaultBaseURL = "https://hapi.fhir.org/baseR4"
	DefaultTimeout = 30 * time.Second

	fhirContentType = "application/fhir+json"
	maxPages        = 20
)

// Client reads patients, observations and procedures from a FHIR R4 server
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new FHIR client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// searchURL builds <base>/<resource>?<params>
func (c *Client) searchURL(resource string, params url.Values) string {
	return fmt.Sprintf("%s/%s?%s", c.baseURL, resource, params.Encode())
}

// fetchBundle fetches one search page
func (c *Client) fetchBundle(ctx context.Context, resource, pageURL string) (*Bundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", fhirContentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordFHIRRequest(resource, start, 0)
		return nil, fmt.Errorf("failed to fetch %s: %w", resource, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	metrics.RecordFHIRRequest(resource, start, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FHIR server returned status %d for %s", resp.StatusCode, resource)
	}

	var bundle Bundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to parse FHIR bundle for %s: %w", resource, err)
	}
	return &bundle, nil
}

// search follows next links until limit resources were decoded into out or
// the server runs out of pages. limit <= 0 means every page.
func search[T any](ctx context.Context, c *Client, resource string, params url.Values, limit int) ([]T, error) {
	var out []T
	next := c.searchURL(resource, params)

	for page := 0; next != "" && page < maxPages; page++ {
		bundle, err := c.fetchBundle(ctx, resource, next)
		if err != nil {
			return out, err
		}

		for _, entry := range bundle.Entry {
			var res T
			if err := json.Unmarshal(entry.Resource, &res); err != nil {
				log.Warn().Err(err).Str("resource", resource).Str("url", entry.FullURL).Msg("Skipping undecodable resource")
				continue
			}
			out = append(out, res)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		next = bundle.next()
	}
	return out, nil
}

// Patients returns up to count patients.
func (c *Client) Patients(ctx context.Context, count int) ([]Patient, error) {
	params := url.Values{}
	params.Set("_count", fmt.Sprint(count))
	return search[Patient](ctx, c, "Patient", params, count)
}

// Observations returns the vital-sign and laboratory observations of a patient.
func (c *Client) Observations(ctx context.Context, patientID string) ([]Observation, error) {
	var all []Observation
	for _, category := range []string{"vital-signs", "laboratory"} {
		params := url.Values{}
		params.Set("subject", "Patient/"+patientID)
		params.Set("category", category)
		params.Set("_sort", "date")
		params.Set("_count", "200")

		obs, err := search[Observation](ctx, c, "Observation", params, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, obs...)
	}
	return all, nil
}

// LatestProcedure returns the most recent procedure of a patient, or nil.
func (c *Client) LatestProcedure(ctx context.Context, patientID string) (*Procedure, error) {
	params := url.Values{}
	params.Set("subject", "Patient/"+patientID)
	params.Set("_sort", "-date")
	params.Set("_count", "1")

	procs, err := search[Procedure](ctx, c, "Procedure", params, 1)
	if err != nil || len(procs) == 0 {
		return nil, err
	}
	return &procs[0], nil
}
