// Package address normalizes and validates lead addresses. Resolution is
// best-effort: a lookup failure degrades to the caller-supplied fields so
// the enrichment pipeline never stalls on this stage.
package address

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"prospector_backend/internal/geocode"
	"prospector_backend/internal/postal"
	"prospector_backend/platform/logger"
)

// Resolution sources.
const (
	SourceCache    = "cache"
	SourceLookup   = "lookup"
	SourceFallback = "fallback"
)

// Degradation reason codes.
const (
	ReasonInvalidPostalCode = "invalid_postal_code"
	ReasonLookupNotFound    = "lookup_not_found"
	ReasonLookupFailed      = "lookup_failed"
)

// PartialAddress is the caller-supplied raw address.
type PartialAddress struct {
	Street         string
	Number         string
	Complement     string
	Neighborhood   string
	City           string
	State          string
	PostalCode     string
	RawCoordinates string // "lat,lon" free-text from the import
}

// Validated is a normalized address.
type Validated struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	PostalCode   string
	Latitude     *float64
	Longitude    *float64
}

// Resolution carries either a validated address or a degraded best-effort
// one plus the reason, instead of signalling recoverable failures as errors.
type Resolution struct {
	Address  Validated
	Source   string
	Degraded bool
	Reason   string
}

// PostalLookup is the external postal service.
type PostalLookup interface {
	Lookup(ctx context.Context, code string) (*postal.Result, error)
}

// PostalCache guards the postal service behind a TTL store.
type PostalCache interface {
	Get(ctx context.Context, code string) (*postal.Result, error)
	Put(ctx context.Context, code string, result *postal.Result) error
}

// Geocoder is the optional coordinates collaborator.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*geocode.Coordinates, error)
}

// Resolver validates partial addresses against cache and external lookup.
type Resolver struct {
	cache    PostalCache
	lookup   PostalLookup
	geocoder Geocoder // nil when not configured

	// pace spaces the resolver's own outbound lookups at least one
	// second apart; this is separate from the registry quota limiter.
	pace *rate.Limiter
	log  *logger.Logger
}

// NewResolver creates a resolver. geocoder may be nil.
func NewResolver(cache PostalCache, lookup PostalLookup, geocoder Geocoder, log *logger.Logger) *Resolver {
	return &Resolver{
		cache:    cache,
		lookup:   lookup,
		geocoder: geocoder,
		pace:     rate.NewLimiter(rate.Every(time.Second), 1),
		log:      log,
	}
}

// Resolve normalizes and validates a partial address, consulting the cache
// before the external lookup. Never returns an error: on any lookup failure
// the caller-supplied fields are returned with a degradation reason.
func (r *Resolver) Resolve(ctx context.Context, partial PartialAddress) Resolution {
	street := strings.TrimSpace(partial.Street)
	number := strings.TrimSpace(partial.Number)
	if number == "" {
		street, number = ExtractNumber(street)
	}

	base := Validated{
		Street:       street,
		Number:       number,
		Complement:   strings.TrimSpace(partial.Complement),
		Neighborhood: strings.TrimSpace(partial.Neighborhood),
		City:         strings.TrimSpace(partial.City),
		State:        strings.ToUpper(strings.TrimSpace(partial.State)),
		PostalCode:   NormalizePostalCode(partial.PostalCode),
	}
	base.Latitude, base.Longitude = parseCoordinates(partial.RawCoordinates)

	res := r.resolvePostal(ctx, base)
	r.maybeGeocode(ctx, &res)
	return res
}

func (r *Resolver) resolvePostal(ctx context.Context, base Validated) Resolution {
	if len(base.PostalCode) != 8 {
		return Resolution{Address: base, Source: SourceFallback, Degraded: true, Reason: ReasonInvalidPostalCode}
	}

	if cached, err := r.cache.Get(ctx, base.PostalCode); err == nil && cached != nil {
		return Resolution{Address: merge(base, cached), Source: SourceCache}
	} else if err != nil {
		r.log.StageError("address.cache", err)
	}

	if err := r.pace.Wait(ctx); err != nil {
		return Resolution{Address: base, Source: SourceFallback, Degraded: true, Reason: ReasonLookupFailed}
	}

	looked, err := r.lookup.Lookup(ctx, base.PostalCode)
	if err != nil {
		reason := ReasonLookupFailed
		if err == postal.ErrNotFound {
			reason = ReasonLookupNotFound
		} else {
			r.log.StageError("address.lookup", err)
		}
		return Resolution{Address: base, Source: SourceFallback, Degraded: true, Reason: reason}
	}

	if err := r.cache.Put(ctx, base.PostalCode, looked); err != nil {
		r.log.StageError("address.cache", err)
	}

	return Resolution{Address: merge(base, looked), Source: SourceLookup}
}

func (r *Resolver) maybeGeocode(ctx context.Context, res *Resolution) {
	if r.geocoder == nil || res.Address.Latitude != nil {
		return
	}
	if res.Address.Street == "" || res.Address.City == "" {
		return
	}

	query := buildGeocodeQuery(res.Address)
	coords, err := r.geocoder.Geocode(ctx, query)
	if err != nil {
		r.log.StageError("address.geocode", err)
		return
	}
	if coords == nil {
		return
	}

	res.Address.Latitude = &coords.Latitude
	res.Address.Longitude = &coords.Longitude
}

// IsValid reports whether an address carries enough to be persisted as
// validated: street, city, state and an 8-digit postal code.
func IsValid(v Validated) bool {
	return v.Street != "" && v.City != "" && v.State != "" && len(v.PostalCode) == 8
}

// merge overlays the lookup result on the caller-supplied fields. Lookup
// wins on the fields it owns; number and complement stay with the caller.
func merge(base Validated, looked *postal.Result) Validated {
	out := base
	if s := strings.TrimSpace(looked.Street); s != "" {
		out.Street = s
	}
	if n := strings.TrimSpace(looked.Neighborhood); n != "" {
		out.Neighborhood = n
	}
	if c := strings.TrimSpace(looked.City); c != "" {
		out.City = c
	}
	if st := strings.TrimSpace(looked.State); st != "" {
		out.State = strings.ToUpper(st)
	}
	if out.Complement == "" {
		out.Complement = strings.TrimSpace(looked.Complement)
	}
	return out
}

var (
	trailingNumberRe = regexp.MustCompile(`^(.*?)[\s,.-]+(?:n[ºo°.]?\s*)?(\d+[a-zA-Z]?)\s*$`)
	leadingNumberRe  = regexp.MustCompile(`^(\d+[a-zA-Z]?)[\s,.-]+(.+)$`)
)

// ExtractNumber heuristically splits a free-text street into street name and
// number when the number was not supplied separately. Handles both trailing
// ("Rua das Flores, 123") and leading ("123 Rua das Flores") tokens.
func ExtractNumber(street string) (string, string) {
	street = strings.TrimSpace(street)
	if street == "" {
		return "", ""
	}

	if m := trailingNumberRe.FindStringSubmatch(street); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1]), m[2]
	}
	if m := leadingNumberRe.FindStringSubmatch(street); m != nil {
		return strings.TrimSpace(m[2]), m[1]
	}
	return street, ""
}

// NormalizePostalCode strips everything but digits.
func NormalizePostalCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseCoordinates(raw string) (*float64, *float64) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 2 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, nil
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, nil
	}

	return &lat, &lon
}

func buildGeocodeQuery(v Validated) string {
	parts := make([]string, 0, 4)
	street := v.Street
	if v.Number != "" {
		street += " " + v.Number
	}
	parts = append(parts, street, v.City)
	if v.State != "" {
		parts = append(parts, v.State)
	}
	if v.PostalCode != "" {
		parts = append(parts, v.PostalCode)
	}
	return strings.Join(parts, ", ")
}
