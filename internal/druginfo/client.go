// Package druginfo looks up drug label information from the OpenFDA API.
// It is a read-only convenience for the pharmacist; failures here never
// affect inventory or sales.
package druginfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.fda.gov"

var ErrNameRequired = errors.New("drug name is required")

// Info is the flattened label summary returned to the UI.
type Info struct {
	Found            bool   `json:"found"`
	Query            string `json:"query"`
	BrandName        string `json:"brand_name,omitempty"`
	GenericName      string `json:"generic_name,omitempty"`
	ActiveIngredient string `json:"active_ingredient,omitempty"`
	Indications      string `json:"indications,omitempty"`
	Dosage           string `json:"dosage,omitempty"`
	Warnings         string `json:"warnings,omitempty"`
	Contraindication string `json:"contraindications,omitempty"`
	Interactions     string `json:"interactions,omitempty"`
	Pregnancy        string `json:"pregnancy,omitempty"`
	Storage          string `json:"storage,omitempty"`
	Source           string `json:"source"`
}

type labelResponse struct {
	Results []labelResult `json:"results"`
}

type labelResult struct {
	ActiveIngredient         []string `json:"active_ingredient"`
	IndicationsAndUsage      []string `json:"indications_and_usage"`
	DosageAndAdministration  []string `json:"dosage_and_administration"`
	Warnings                 []string `json:"warnings"`
	BoxedWarning             []string `json:"boxed_warning"`
	Contraindications        []string `json:"contraindications"`
	DrugInteractions         []string `json:"drug_interactions"`
	Pregnancy                []string `json:"pregnancy"`
	PregnancyOrBreastFeeding []string `json:"pregnancy_or_breast_feeding"`
	StorageAndHandling       []string `json:"storage_and_handling"`
	OpenFDA                  struct {
		BrandName     []string `json:"brand_name"`
		GenericName   []string `json:"generic_name"`
		SubstanceName []string `json:"substance_name"`
	} `json:"openfda"`
}

// Client queries the OpenFDA drug label endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a Client with a bounded request timeout.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		logger:     logger,
	}
}

// NewClientWithBaseURL is used by tests to point at a stub server.
func NewClientWithBaseURL(baseURL string, logger *zap.Logger) *Client {
	c := NewClient(logger)
	c.baseURL = baseURL
	return c
}

// Lookup searches for a drug by brand or generic name and returns the
// first matching label, or Found=false when there is no match.
func (c *Client) Lookup(ctx context.Context, name string) (*Info, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	search := fmt.Sprintf(`openfda.brand_name:%q OR openfda.generic_name:%q`, name, name)
	reqURL := fmt.Sprintf("%s/drug/label.json?search=%s&limit=1", c.baseURL, url.QueryEscape(search))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openfda request failed: %w", err)
	}
	defer resp.Body.Close()

	// OpenFDA answers 404 for empty result sets.
	if resp.StatusCode == http.StatusNotFound {
		return &Info{Found: false, Query: name, Source: "openfda"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openfda returned status %d", resp.StatusCode)
	}

	var body labelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode openfda response: %w", err)
	}

	if len(body.Results) == 0 {
		return &Info{Found: false, Query: name, Source: "openfda"}, nil
	}

	d := body.Results[0]

	info := &Info{
		Found:            true,
		Query:            name,
		BrandName:        pick(d.OpenFDA.BrandName),
		GenericName:      pick(d.OpenFDA.GenericName),
		ActiveIngredient: clean(firstOf(pick(d.ActiveIngredient), pick(d.OpenFDA.SubstanceName))),
		Indications:      clean(pick(d.IndicationsAndUsage)),
		Dosage:           clean(pick(d.DosageAndAdministration)),
		Warnings:         clean(firstOf(pick(d.Warnings), pick(d.BoxedWarning))),
		Contraindication: clean(pick(d.Contraindications)),
		Interactions:     clean(pick(d.DrugInteractions)),
		Pregnancy:        clean(firstOf(pick(d.Pregnancy), pick(d.PregnancyOrBreastFeeding))),
		Storage:          clean(pick(d.StorageAndHandling)),
		Source:           "openfda",
	}
	if info.BrandName == "" {
		info.BrandName = name
	}

	return info, nil
}

func pick(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}

func firstOf(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
