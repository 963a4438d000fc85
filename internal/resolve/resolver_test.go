package resolve

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/trackhub/internal/endpoint"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	reg, err := endpoint.NewRegistry(endpoint.File{
		Endpoints: []endpoint.Descriptor{
			{
				ID:     "issues.list",
				Method: endpoint.MethodGet,
				Templates: map[string]string{
					endpoint.SurfaceClient:   "/projects/{projectID}/issues",
					endpoint.SurfaceUpstream: "/api/v2/projects/{projectID}/issues",
				},
				PathParams:  []string{"projectID"},
				QueryParams: []string{"status", "page"},
			},
			{
				ID:     "issues.compare",
				Method: endpoint.MethodGet,
				Templates: map[string]string{
					endpoint.SurfaceUpstream: "/api/v2/issues/{issueID}/diff/{issueID}",
				},
				PathParams: []string{"issueID"},
			},
			{
				ID:     "issues.move",
				Method: endpoint.MethodPost,
				Templates: map[string]string{
					endpoint.SurfaceUpstream: "/api/v2/projects/{projectID}/issues/{issueID}/move",
				},
				PathParams: []string{"projectID", "issueID"},
			},
		},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(reg, zerolog.Nop())
}

func TestResolve(t *testing.T) {
	r := testResolver(t)

	rp, err := r.Resolve("issues.list", endpoint.SurfaceUpstream, map[string]string{"projectID": "alpha"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rp.Path != "/api/v2/projects/alpha/issues" {
		t.Errorf("path = %q", rp.Path)
	}
	if rp.Surface != endpoint.SurfaceUpstream || rp.Method != endpoint.MethodGet {
		t.Errorf("surface=%q method=%q", rp.Surface, rp.Method)
	}
	if rp.Consumed["projectID"] != "alpha" {
		t.Errorf("consumed = %v", rp.Consumed)
	}
}

// Resolving with a complete parameter map never leaves template syntax in the
// output, on any surface.
func TestResolveLeavesNoBraces(t *testing.T) {
	r := testResolver(t)
	params := map[string]string{"projectID": "alpha", "issueID": "42"}

	for _, tc := range []struct{ id, surface string }{
		{"issues.list", endpoint.SurfaceClient},
		{"issues.list", endpoint.SurfaceUpstream},
		{"issues.compare", endpoint.SurfaceUpstream},
		{"issues.move", endpoint.SurfaceUpstream},
	} {
		rp, err := r.Resolve(tc.id, tc.surface, params)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.id, tc.surface, err)
		}
		if strings.ContainsAny(rp.Path, "{}") {
			t.Errorf("%s/%s: unsubstituted path %q", tc.id, tc.surface, rp.Path)
		}
	}
}

func TestDuplicatePlaceholderSubstitutedEverywhere(t *testing.T) {
	r := testResolver(t)
	rp, err := r.Resolve("issues.compare", endpoint.SurfaceUpstream, map[string]string{"issueID": "42"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rp.Path != "/api/v2/issues/42/diff/42" {
		t.Errorf("path = %q", rp.Path)
	}
}

// Omitting any single required parameter fails with MissingParameter naming
// exactly that parameter, whatever else is present.
func TestMissingParameterNamesIt(t *testing.T) {
	r := testResolver(t)
	full := map[string]string{"projectID": "alpha", "issueID": "42"}

	for _, omit := range []string{"projectID", "issueID"} {
		params := make(map[string]string)
		for k, v := range full {
			if k != omit {
				params[k] = v
			}
		}
		_, err := r.Resolve("issues.move", endpoint.SurfaceUpstream, params)
		var missing *MissingParameterError
		if !errors.As(err, &missing) {
			t.Fatalf("omit %s: expected MissingParameterError, got %v", omit, err)
		}
		if missing.Name != omit {
			t.Errorf("omit %s: error names %q", omit, missing.Name)
		}
	}

	// An empty value counts as missing too.
	_, err := r.Resolve("issues.list", endpoint.SurfaceUpstream, map[string]string{"projectID": ""})
	var missing *MissingParameterError
	if !errors.As(err, &missing) || missing.Name != "projectID" {
		t.Errorf("empty value: got %v", err)
	}
}

func TestSlashInValueRejected(t *testing.T) {
	r := testResolver(t)
	_, err := r.Resolve("issues.list", endpoint.SurfaceUpstream, map[string]string{"projectID": "alpha/../../admin"})
	var invalid *InvalidParameterError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidParameterError, got %v", err)
	}
	if invalid.Name != "projectID" {
		t.Errorf("error names %q", invalid.Name)
	}
}

func TestValuesArePathEscaped(t *testing.T) {
	r := testResolver(t)
	rp, err := r.Resolve("issues.list", endpoint.SurfaceUpstream, map[string]string{"projectID": "alpha beta?"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rp.Path != "/api/v2/projects/alpha%20beta%3F/issues" {
		t.Errorf("path = %q", rp.Path)
	}
}

func TestQueryParams(t *testing.T) {
	r := testResolver(t)
	rp, err := r.Resolve("issues.list", endpoint.SurfaceUpstream, map[string]string{
		"projectID": "alpha",
		"status":    "open",
		"page":      "2",
		"bogus":     "dropped", // undeclared, must be dropped silently
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rp.Path != "/api/v2/projects/alpha/issues?page=2&status=open" {
		t.Errorf("path = %q", rp.Path)
	}
	if _, ok := rp.Consumed["bogus"]; ok {
		t.Error("undeclared parameter recorded as consumed")
	}
}

func TestUnknownEndpointAndSurface(t *testing.T) {
	r := testResolver(t)

	_, err := r.Resolve("nope", endpoint.SurfaceUpstream, nil)
	var ue *UnknownEndpointError
	if !errors.As(err, &ue) {
		t.Errorf("expected UnknownEndpointError, got %v", err)
	}

	_, err = r.Resolve("issues.compare", endpoint.SurfaceClient, map[string]string{"issueID": "42"})
	var us *UnknownSurfaceError
	if !errors.As(err, &us) {
		t.Errorf("expected UnknownSurfaceError, got %v", err)
	}
}
