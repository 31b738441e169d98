package address

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/time/rate"

	"prospector_backend/internal/geocode"
	"prospector_backend/internal/postal"
	"prospector_backend/platform/logger"
)

type fakeCache struct {
	entries map[string]*postal.Result
	puts    int
}

func (f *fakeCache) Get(_ context.Context, code string) (*postal.Result, error) {
	return f.entries[code], nil
}

func (f *fakeCache) Put(_ context.Context, code string, result *postal.Result) error {
	f.puts++
	f.entries[code] = result
	return nil
}

type fakeLookup struct {
	calls  int
	result *postal.Result
	err    error
}

func (f *fakeLookup) Lookup(_ context.Context, _ string) (*postal.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeGeocoder struct {
	coords *geocode.Coordinates
	err    error
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) (*geocode.Coordinates, error) {
	return f.coords, f.err
}

func newTestResolver(cache *fakeCache, lookup *fakeLookup, geocoder Geocoder) *Resolver {
	r := NewResolver(cache, lookup, geocoder, logger.New("development"))
	r.pace = rate.NewLimiter(rate.Inf, 1)
	return r
}

func TestExtractNumber(t *testing.T) {
	cases := []struct {
		in     string
		street string
		number string
	}{
		{"Rua das Flores, 123", "Rua das Flores", "123"},
		{"Rua das Flores 123", "Rua das Flores", "123"},
		{"Avenida Brasil - 45B", "Avenida Brasil", "45B"},
		{"Rua XV de Novembro nº 88", "Rua XV de Novembro", "88"},
		{"123 Main Street", "Main Street", "123"},
		{"Rua sem numero", "Rua sem numero", ""},
		{"", "", ""},
	}

	for _, c := range cases {
		street, number := ExtractNumber(c.in)
		if street != c.street || number != c.number {
			t.Fatalf("ExtractNumber(%q) = (%q, %q), want (%q, %q)", c.in, street, number, c.street, c.number)
		}
	}
}

func TestResolve_CacheShortCircuitsLookup(t *testing.T) {
	cache := &fakeCache{entries: map[string]*postal.Result{
		"01310100": {Street: "Avenida Paulista", Neighborhood: "Bela Vista", City: "São Paulo", State: "SP"},
	}}
	lookup := &fakeLookup{}
	r := newTestResolver(cache, lookup, nil)

	res := r.Resolve(context.Background(), PartialAddress{
		Street:     "Av Paulista 1000",
		PostalCode: "01310-100",
	})

	if lookup.calls != 0 {
		t.Fatalf("expected cached code to skip external lookup, got %d calls", lookup.calls)
	}
	if res.Source != SourceCache || res.Degraded {
		t.Fatalf("expected clean cache resolution, got %+v", res)
	}
	if res.Address.Street != "Avenida Paulista" || res.Address.Number != "1000" {
		t.Fatalf("unexpected merged address: %+v", res.Address)
	}
}

func TestResolve_LookupWritesThroughToCache(t *testing.T) {
	cache := &fakeCache{entries: map[string]*postal.Result{}}
	lookup := &fakeLookup{result: &postal.Result{Street: "Rua Augusta", City: "São Paulo", State: "sp"}}
	r := newTestResolver(cache, lookup, nil)

	res := r.Resolve(context.Background(), PartialAddress{PostalCode: "01413000", Street: "Rua Augusta, 500"})

	if lookup.calls != 1 {
		t.Fatalf("expected 1 lookup call, got %d", lookup.calls)
	}
	if cache.puts != 1 {
		t.Fatalf("expected write-through to cache, got %d puts", cache.puts)
	}
	if res.Source != SourceLookup || res.Address.State != "SP" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolve_FailuresDegradeInsteadOfRaising(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"not found", postal.ErrNotFound, ReasonLookupNotFound},
		{"network error", fmt.Errorf("connection refused"), ReasonLookupFailed},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cache := &fakeCache{entries: map[string]*postal.Result{}}
			lookup := &fakeLookup{err: c.err}
			r := newTestResolver(cache, lookup, nil)

			res := r.Resolve(context.Background(), PartialAddress{
				Street:     "Rua Direita, 10",
				City:       "Salvador",
				State:      "BA",
				PostalCode: "40020-000",
			})

			if !res.Degraded || res.Reason != c.reason {
				t.Fatalf("expected degraded resolution with reason %q, got %+v", c.reason, res)
			}
			if res.Address.Street != "Rua Direita" || res.Address.Number != "10" || res.Address.City != "Salvador" {
				t.Fatalf("expected caller fields preserved, got %+v", res.Address)
			}
		})
	}
}

func TestResolve_InvalidPostalCode(t *testing.T) {
	cache := &fakeCache{entries: map[string]*postal.Result{}}
	lookup := &fakeLookup{}
	r := newTestResolver(cache, lookup, nil)

	res := r.Resolve(context.Background(), PartialAddress{Street: "Rua A", PostalCode: "123"})

	if lookup.calls != 0 {
		t.Fatalf("short postal code must not reach the lookup service")
	}
	if !res.Degraded || res.Reason != ReasonInvalidPostalCode {
		t.Fatalf("expected invalid_postal_code degradation, got %+v", res)
	}
}

func TestResolve_GeocodesWhenCoordinatesMissing(t *testing.T) {
	cache := &fakeCache{entries: map[string]*postal.Result{
		"40020000": {Street: "Rua Chile", City: "Salvador", State: "BA"},
	}}
	geocoder := &fakeGeocoder{coords: &geocode.Coordinates{Latitude: -12.97, Longitude: -38.51}}
	r := newTestResolver(cache, &fakeLookup{}, geocoder)

	res := r.Resolve(context.Background(), PartialAddress{PostalCode: "40020000"})

	if res.Address.Latitude == nil || *res.Address.Latitude != -12.97 {
		t.Fatalf("expected geocoded coordinates, got %+v", res.Address)
	}
}

func TestResolve_RawCoordinatesSkipGeocoder(t *testing.T) {
	cache := &fakeCache{entries: map[string]*postal.Result{
		"40020000": {Street: "Rua Chile", City: "Salvador", State: "BA"},
	}}
	geocoder := &fakeGeocoder{err: fmt.Errorf("should not be called")}
	r := newTestResolver(cache, &fakeLookup{}, geocoder)

	res := r.Resolve(context.Background(), PartialAddress{
		PostalCode:     "40020000",
		RawCoordinates: "-12.9714, -38.5014",
	})

	if res.Address.Latitude == nil || *res.Address.Latitude != -12.9714 {
		t.Fatalf("expected raw coordinates parsed, got %+v", res.Address)
	}
}

func TestIsValid(t *testing.T) {
	valid := Validated{Street: "Rua A", City: "Recife", State: "PE", PostalCode: "50010000"}
	if !IsValid(valid) {
		t.Fatalf("expected valid address")
	}

	missingState := valid
	missingState.State = ""
	if IsValid(missingState) {
		t.Fatalf("expected invalid without state")
	}

	shortCode := valid
	shortCode.PostalCode = "5001000"
	if IsValid(shortCode) {
		t.Fatalf("expected invalid with 7-digit postal code")
	}
}
