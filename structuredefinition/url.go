package structuredefinition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ResolveURL maps a canonical profile URL to the concrete JSON document URL
// to fetch, following the three rules of §4.6:
//   - a URL already ending in ".json" is used directly.
//   - the HL7 core canonical prefix is mapped to the published extension
//     JSON location.
//   - otherwise, the canonical's last "/" is replaced by "-" and the
//     last segment is lowercased, with ".json" appended.
//
// Grounded on factory.py get_structure_definition's json_url construction.
func ResolveURL(profileURL string) string {
	if strings.HasSuffix(profileURL, ".json") {
		return profileURL
	}
	if strings.HasPrefix(profileURL, "http://hl7.org/fhir/StructureDefinition") {
		domain, resource := rsplitOnce(profileURL, '/')
		domain = strings.Replace(domain, "http://hl7.org/fhir/StructureDefinition", "https://hl7.org/fhir/R4/extension", 1)
		return fmt.Sprintf("%s-%s.json", domain, strings.ToLower(resource))
	}
	domain, resource := rsplitOnce(profileURL, '/')
	return fmt.Sprintf("%s-%s.json", domain, strings.ToLower(resource))
}

func rsplitOnce(s string, sep byte) (before, after string) {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// Fetch resolves and downloads a StructureDefinition by canonical URL,
// blocking synchronously (§5 Concurrency: "the ingestor's URL fetch... is
// a blocking synchronous call; cancellation is cooperative at the
// HTTP-client boundary only").
func Fetch(ctx context.Context, client *http.Client, profileURL string) (*StructureDefinition, error) {
	jsonURL := ResolveURL(profileURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
	if err != nil {
		return nil, fmt.Errorf("structuredefinition: building request for %q: %w", jsonURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("failed to fetch structure definition", "url", jsonURL, "err", err)
		return nil, fmt.Errorf("structuredefinition: fetching %q: %w", jsonURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("structuredefinition: fetching %q: unexpected status %s", jsonURL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("structuredefinition: reading response body for %q: %w", jsonURL, err)
	}

	sd, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("structuredefinition: parsing %q: %w", jsonURL, err)
	}
	return sd, nil
}
