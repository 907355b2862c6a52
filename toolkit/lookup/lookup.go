// Package lookup provides read-only enrichment tools backed by public
// registries: ORCID for people, ROR for organizations, OLS for ontology
// terms, plus a generic fetch_url. None of them touch the draft.
//
// The registry lookups are best-effort verification. When the upstream
// service cannot be reached the tools return a lenient result with
// verified:false and a hint instead of failing the call, so a network
// hiccup never blocks an edit that is otherwise fine.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/skosovsky/draftset"
)

const (
	defaultORCIDBaseURL = "https://pub.orcid.org/v3.0"
	defaultRORBaseURL   = "https://api.ror.org"
	defaultOLSBaseURL   = "https://www.ebi.ac.uk/ols4/api"

	// fetch_url responses are capped so a huge page cannot flood the
	// conversation transcript.
	defaultMaxFetchBytes = 64 * 1024

	defaultLookupTimeout = 15 * time.Second
)

var orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// Service owns the HTTP plumbing behind the lookup tools.
type Service struct {
	httpc         *http.Client
	orcidBaseURL  string
	rorBaseURL    string
	olsBaseURL    string
	maxFetchBytes int64
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client used for all lookups.
func WithHTTPClient(httpc *http.Client) Option {
	return func(s *Service) { s.httpc = httpc }
}

// WithORCIDBaseURL points the ORCID lookup at a different endpoint.
func WithORCIDBaseURL(u string) Option {
	return func(s *Service) { s.orcidBaseURL = strings.TrimRight(u, "/") }
}

// WithRORBaseURL points the ROR lookup at a different endpoint.
func WithRORBaseURL(u string) Option {
	return func(s *Service) { s.rorBaseURL = strings.TrimRight(u, "/") }
}

// WithOLSBaseURL points the OLS lookup at a different endpoint.
func WithOLSBaseURL(u string) Option {
	return func(s *Service) { s.olsBaseURL = strings.TrimRight(u, "/") }
}

// WithMaxFetchBytes changes the fetch_url response size cap.
func WithMaxFetchBytes(n int64) Option {
	return func(s *Service) { s.maxFetchBytes = n }
}

// NewService creates a lookup service with production endpoints by default.
func NewService(opts ...Option) *Service {
	s := &Service{
		httpc:         &http.Client{Timeout: defaultLookupTimeout},
		orcidBaseURL:  defaultORCIDBaseURL,
		rorBaseURL:    defaultRORBaseURL,
		olsBaseURL:    defaultOLSBaseURL,
		maxFetchBytes: defaultMaxFetchBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register builds the lookup tools and registers them on reg.
func (s *Service) Register(reg *draftset.Registry) error {
	lookupORCID, err := draftset.NewTool(
		"lookup_orcid",
		"Verify an ORCID iD against the public ORCID registry and return the researcher's name.",
		s.lookupORCID,
	)
	if err != nil {
		return fmt.Errorf("build lookup_orcid: %w", err)
	}

	lookupROR, err := draftset.NewTool(
		"lookup_ror",
		"Verify a ROR identifier against the Research Organization Registry and return the organization's name.",
		s.lookupROR,
	)
	if err != nil {
		return fmt.Errorf("build lookup_ror: %w", err)
	}

	lookupOLS, err := draftset.NewTool(
		"lookup_ols",
		"Search the EBI Ontology Lookup Service for matching ontology terms.",
		s.lookupOLS,
	)
	if err != nil {
		return fmt.Errorf("build lookup_ols: %w", err)
	}

	fetchURL, err := draftset.NewTool(
		"fetch_url",
		"Fetch the contents of a URL. The response body is truncated to a fixed size limit.",
		s.fetchURL,
	)
	if err != nil {
		return fmt.Errorf("build fetch_url: %w", err)
	}

	reg.Register(lookupORCID)
	reg.Register(lookupROR)
	reg.Register(lookupOLS)
	reg.Register(fetchURL)
	return nil
}

type orcidArgs struct {
	ORCID string `json:"orcid" description:"ORCID iD, e.g. 0000-0002-1825-0097"`
}

type verifyResult struct {
	Success  bool   `json:"success"`
	Verified bool   `json:"verified"`
	Name     string `json:"name,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

func (s *Service) lookupORCID(ctx context.Context, args orcidArgs) (verifyResult, error) {
	id := strings.TrimSpace(args.ORCID)
	if !orcidPattern.MatchString(id) {
		return verifyResult{}, &draftset.ClientError{
			Reason: fmt.Sprintf("%q is not a valid ORCID iD", args.ORCID),
			Hint:   "ORCID iDs look like 0000-0002-1825-0097",
		}
	}

	var payload struct {
		Person struct {
			Name struct {
				GivenNames struct {
					Value string `json:"value"`
				} `json:"given-names"`
				FamilyName struct {
					Value string `json:"value"`
				} `json:"family-name"`
			} `json:"name"`
		} `json:"person"`
	}

	status, err := s.getJSON(ctx, s.orcidBaseURL+"/"+id, &payload)
	if err != nil {
		return unreachable("ORCID registry"), nil
	}
	if status == http.StatusNotFound {
		return verifyResult{
			Success: true,
			Hint:    "no ORCID record found for this iD",
		}, nil
	}
	if status < 200 || status >= 300 {
		return unreachable("ORCID registry"), nil
	}

	name := strings.TrimSpace(payload.Person.Name.GivenNames.Value + " " + payload.Person.Name.FamilyName.Value)
	return verifyResult{Success: true, Verified: true, Name: name}, nil
}

type rorArgs struct {
	ROR string `json:"ror" description:"ROR identifier, e.g. 03yrm5c26 or https://ror.org/03yrm5c26"`
}

func (s *Service) lookupROR(ctx context.Context, args rorArgs) (verifyResult, error) {
	id := strings.TrimSpace(args.ROR)
	id = strings.TrimPrefix(id, "https://ror.org/")
	id = strings.TrimPrefix(id, "ror.org/")
	if id == "" {
		return verifyResult{}, &draftset.ClientError{
			Reason: "ROR identifier is empty",
			Hint:   "ROR identifiers look like 03yrm5c26",
		}
	}

	var payload struct {
		Name string `json:"name"`
	}

	status, err := s.getJSON(ctx, s.rorBaseURL+"/organizations/"+url.PathEscape(id), &payload)
	if err != nil {
		return unreachable("ROR registry"), nil
	}
	if status == http.StatusNotFound {
		return verifyResult{
			Success: true,
			Hint:    "no ROR record found for this identifier",
		}, nil
	}
	if status < 200 || status >= 300 {
		return unreachable("ROR registry"), nil
	}

	return verifyResult{Success: true, Verified: true, Name: payload.Name}, nil
}

type olsArgs struct {
	Term string `json:"term" description:"Term to search for, e.g. proteomics"`
}

type olsTerm struct {
	Label    string `json:"label"`
	ID       string `json:"id,omitempty"`
	Ontology string `json:"ontology,omitempty"`
	IRI      string `json:"iri,omitempty"`
}

type olsResult struct {
	Success bool      `json:"success"`
	Count   int       `json:"count"`
	Terms   []olsTerm `json:"terms"`
	Hint    string    `json:"hint,omitempty"`
}

func (s *Service) lookupOLS(ctx context.Context, args olsArgs) (olsResult, error) {
	term := strings.TrimSpace(args.Term)
	if term == "" {
		return olsResult{}, &draftset.ClientError{Reason: "search term is empty"}
	}

	var payload struct {
		Response struct {
			NumFound int `json:"numFound"`
			Docs     []struct {
				Label        string `json:"label"`
				OboID        string `json:"obo_id"`
				OntologyName string `json:"ontology_name"`
				IRI          string `json:"iri"`
			} `json:"docs"`
		} `json:"response"`
	}

	endpoint := s.olsBaseURL + "/search?q=" + url.QueryEscape(term) + "&rows=5"
	status, err := s.getJSON(ctx, endpoint, &payload)
	if err != nil || status < 200 || status >= 300 {
		return olsResult{
			Success: true,
			Terms:   []olsTerm{},
			Hint:    "could not reach the ontology lookup service; assume the term is acceptable",
		}, nil
	}

	terms := make([]olsTerm, 0, len(payload.Response.Docs))
	for _, doc := range payload.Response.Docs {
		terms = append(terms, olsTerm{
			Label:    doc.Label,
			ID:       doc.OboID,
			Ontology: doc.OntologyName,
			IRI:      doc.IRI,
		})
	}

	return olsResult{Success: true, Count: payload.Response.NumFound, Terms: terms}, nil
}

type fetchArgs struct {
	URL string `json:"url" description:"Absolute http or https URL to fetch"`
}

type fetchResult struct {
	Success     bool   `json:"success"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        string `json:"body"`
	Truncated   bool   `json:"truncated,omitempty"`
}

func (s *Service) fetchURL(ctx context.Context, args fetchArgs) (fetchResult, error) {
	parsed, err := url.Parse(args.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fetchResult{}, &draftset.ClientError{
			Reason: fmt.Sprintf("%q is not a valid http(s) URL", args.URL),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return fetchResult{}, &draftset.ClientError{Reason: "could not build request: " + err.Error()}
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		// Unlike the registry lookups, fetch_url has nothing useful to
		// return when the request fails, so the failure is surfaced.
		return fetchResult{}, &draftset.ClientError{
			Reason: "fetch failed: " + err.Error(),
			Hint:   "check the URL or try again later",
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxFetchBytes+1))
	if err != nil {
		return fetchResult{}, &draftset.ClientError{Reason: "reading response failed: " + err.Error()}
	}

	truncated := int64(len(body)) > s.maxFetchBytes
	if truncated {
		body = body[:s.maxFetchBytes]
	}

	return fetchResult{
		Success:     true,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
		Truncated:   truncated,
	}, nil
}

func (s *Service) getJSON(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func unreachable(what string) verifyResult {
	return verifyResult{
		Success: true,
		Hint:    "could not reach the " + what + "; assume the identifier is valid",
	}
}
