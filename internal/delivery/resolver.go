package delivery

// DefaultMajorCities are the largest service cities, used as a guess when
// a geocoded state is known but none of its city names match.
var DefaultMajorCities = []string{
	"Visakhapatnam",
	"Vijayawada",
	"Guntur",
	"Hyderabad",
	"Warangal",
	"Nizamabad",
}

// Resolver maps customer input to a priced delivery location. Its
// configuration is fixed at construction, so one Resolver may serve
// concurrent requests. The zero value has no major cities and no state
// aliases; use NewResolver for the defaults.
type Resolver struct {
	// Folded major city names, searched in location list order when a
	// detected state matched but no city name did.
	majors map[string]struct{}
	// Folded abbreviation to folded state name. Without an entry "AP"
	// does not match "Andhra Pradesh".
	aliases map[string]string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMajorCities replaces the major city allow-list.
func WithMajorCities(names ...string) Option {
	return func(r *Resolver) {
		r.majors = make(map[string]struct{}, len(names))
		for _, m := range names {
			r.majors[Normalize(m)] = struct{}{}
		}
	}
}

// WithStateAliases installs an abbreviation map for detected states. The
// map is copied.
func WithStateAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		r.aliases = make(map[string]string, len(aliases))
		for k, v := range aliases {
			r.aliases[Normalize(k)] = Normalize(v)
		}
	}
}

// NewResolver returns a Resolver with the default major cities.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	WithMajorCities(DefaultMajorCities...)(r)
	for _, o := range opts {
		o(r)
	}
	return r
}

// ResolveByExplicitCity prices delivery to a city the customer picked.
// The first location matching both names wins. No match yields an
// unresolved result with zero charge.
func (r *Resolver) ResolveByExplicitCity(locations []Location, city, state string, subtotal int, settings FreeDeliverySettings) Resolution {
	c, s := Normalize(city), Normalize(state)
	if c == "" {
		return unresolved()
	}
	for _, loc := range locations {
		if Normalize(loc.Name) == c && Normalize(loc.State) == s {
			return priced(loc, ConfidenceExact, subtotal, settings)
		}
	}
	return unresolved()
}

// ResolveByGeocode resolves a reverse geocoder guess, falling back from
// exact to partial name matches and then, when the state was detected,
// to a major city and finally the first city of that state. A candidate
// without any usable city name is unresolved.
func (r *Resolver) ResolveByGeocode(locations []Location, cand GeocodeCandidate, subtotal int, settings FreeDeliverySettings) Resolution {
	state := Normalize(cand.DetectedState)
	relevant := locations
	if state != "" {
		relevant = r.inState(locations, state)
	}
	if len(relevant) == 0 {
		return unresolved()
	}

	names := make([]string, 0, len(cand.PossibleCityNames))
	for _, n := range cand.PossibleCityNames {
		if n := Normalize(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return unresolved()
	}

	for _, n := range names {
		for _, loc := range relevant {
			if Normalize(loc.Name) == n {
				return priced(loc, ConfidenceExact, subtotal, settings)
			}
		}
	}

	for _, n := range names {
		for _, loc := range relevant {
			if overlaps(Normalize(loc.Name), n) {
				return priced(loc, ConfidencePartial, subtotal, settings)
			}
		}
	}

	if state == "" {
		return unresolved()
	}

	for _, loc := range relevant {
		if _, ok := r.majors[Normalize(loc.Name)]; ok {
			return priced(loc, ConfidenceMajorCity, subtotal, settings)
		}
	}
	return priced(relevant[0], ConfidenceFirstInState, subtotal, settings)
}

// inState narrows locations to those whose state overlaps the detected
// one. An alias, when configured, is tried as well.
func (r *Resolver) inState(locations []Location, detected string) []Location {
	alias := r.aliases[detected]
	var out []Location
	for _, loc := range locations {
		s := Normalize(loc.State)
		if overlaps(s, detected) || (alias != "" && overlaps(s, alias)) {
			out = append(out, loc)
		}
	}
	return out
}
