package enrich

import (
	"context"
	"net/http"
	"testing"
	"time"

	"prospector_backend/internal/registry"
	"prospector_backend/platform/logger"
)

type fakeRegistry struct {
	calls     int
	responses []fakeResponse
}

type fakeResponse struct {
	company *registry.Company
	err     error
}

func (f *fakeRegistry) Fetch(_ context.Context, _ string) (*registry.Company, error) {
	resp := f.responses[f.calls]
	f.calls++
	return resp.company, resp.err
}

type openGate struct {
	consumes int
	waits    int
	refuse   bool
}

func (g *openGate) TryConsume(_ context.Context) (bool, error) {
	g.consumes++
	if g.refuse {
		g.refuse = false
		return false, nil
	}
	return true, nil
}

func (g *openGate) WaitUntilAvailable(_ context.Context) error {
	g.waits++
	return nil
}

func newTestEnricher(reg *fakeRegistry, gate *openGate) (*Enricher, *[]time.Duration) {
	e := New(reg, gate, logger.New("development"))
	slept := &[]time.Duration{}
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return e, slept
}

func TestNormalizeTaxID(t *testing.T) {
	if got := NormalizeTaxID("12.345.678/0001-95"); got != "12345678000195" {
		t.Fatalf("expected digits only, got %q", got)
	}
}

func TestFetch_BackoffScheduleThenSuccess(t *testing.T) {
	company := &registry.Company{TaxID: "12345678000195", Name: "Mercado Central LTDA", State: "SP"}
	reg := &fakeRegistry{responses: []fakeResponse{
		{err: &registry.StatusError{StatusCode: http.StatusTooManyRequests}},
		{err: &registry.StatusError{StatusCode: http.StatusTooManyRequests}},
		{err: &registry.StatusError{StatusCode: http.StatusTooManyRequests}},
		{err: &registry.StatusError{StatusCode: http.StatusTooManyRequests}},
		{company: company},
	}}
	e, slept := newTestEnricher(reg, &openGate{})

	record := e.Fetch(context.Background(), "12.345.678/0001-95")

	if record == nil {
		t.Fatalf("expected record after retries")
	}
	if record.Region != "Sudeste" {
		t.Fatalf("expected region mapping from SP, got %q", record.Region)
	}
	if reg.calls != 5 {
		t.Fatalf("expected 5 attempts, got %d", reg.calls)
	}

	want := []time.Duration{90 * time.Second, 180 * time.Second, 360 * time.Second, 720 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), *slept)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Fatalf("backoff %d: expected %v, got %v", i+1, d, (*slept)[i])
		}
	}
}

func TestFetch_ExhaustedAttemptsReturnAbsent(t *testing.T) {
	reg := &fakeRegistry{responses: []fakeResponse{
		{err: &registry.StatusError{StatusCode: 500}},
		{err: &registry.StatusError{StatusCode: 502}},
		{err: &registry.StatusError{StatusCode: 503}},
		{err: &registry.StatusError{StatusCode: http.StatusTooManyRequests}},
		{err: &registry.StatusError{StatusCode: 500}},
	}}
	e, slept := newTestEnricher(reg, &openGate{})

	record := e.Fetch(context.Background(), "12345678000195")

	if record != nil {
		t.Fatalf("expected absent after exhaustion, got %+v", record)
	}
	if reg.calls != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", reg.calls)
	}
	if len(*slept) != 4 {
		t.Fatalf("no sleep after the final attempt: got %d sleeps", len(*slept))
	}
}

func TestFetch_PermanentNotFoundDoesNotRetry(t *testing.T) {
	reg := &fakeRegistry{responses: []fakeResponse{
		{err: registry.ErrNotFound},
	}}
	e, slept := newTestEnricher(reg, &openGate{})

	if record := e.Fetch(context.Background(), "12345678000195"); record != nil {
		t.Fatalf("expected absent for not-found")
	}
	if reg.calls != 1 || len(*slept) != 0 {
		t.Fatalf("permanent failure must not retry: calls=%d sleeps=%d", reg.calls, len(*slept))
	}
}

func TestFetch_MalformedTaxIDSkipsLookup(t *testing.T) {
	reg := &fakeRegistry{}
	e, _ := newTestEnricher(reg, &openGate{})

	if record := e.Fetch(context.Background(), "123"); record != nil {
		t.Fatalf("expected absent for malformed id")
	}
	if reg.calls != 0 {
		t.Fatalf("malformed id must not reach the registry")
	}
}

func TestFetch_RefusedQuotaWaits(t *testing.T) {
	company := &registry.Company{TaxID: "12345678000195", Name: "Acme", State: "BA"}
	reg := &fakeRegistry{responses: []fakeResponse{{company: company}}}
	gate := &openGate{refuse: true}
	e, _ := newTestEnricher(reg, gate)

	if record := e.Fetch(context.Background(), "12345678000195"); record == nil {
		t.Fatalf("expected record")
	}
	if gate.waits != 1 {
		t.Fatalf("expected worker to park on the exhausted quota, waits=%d", gate.waits)
	}
}
