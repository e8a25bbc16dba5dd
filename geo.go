package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GeoAnnotator supplies best effort provenance for a request. Returning
// nil is always acceptable.
type GeoAnnotator interface {
	Annotate(c *fiber.Ctx) *GeoLocation
}

// GeoAnnotatorFunc adapts a function to GeoAnnotator
type GeoAnnotatorFunc func(c *fiber.Ctx) *GeoLocation

func (f GeoAnnotatorFunc) Annotate(c *fiber.Ctx) *GeoLocation {
	return f(c)
}

type noopGeo struct{}

func (noopGeo) Annotate(*fiber.Ctx) *GeoLocation { return nil }

// HeaderGeoAnnotator reads the location headers set by an edge proxy or CDN
type HeaderGeoAnnotator struct {
	CountryHeader  string
	RegionHeader   string
	CityHeader     string
	TimezoneHeader string
	LocHeader      string
}

// NewHeaderGeoAnnotator uses the Cloudflare header names
func NewHeaderGeoAnnotator() HeaderGeoAnnotator {
	return HeaderGeoAnnotator{
		CountryHeader:  "CF-IPCountry",
		RegionHeader:   "CF-Region",
		CityHeader:     "CF-IPCity",
		TimezoneHeader: "CF-Timezone",
		LocHeader:      "CF-IPLoc",
	}
}

func (h HeaderGeoAnnotator) Annotate(c *fiber.Ctx) *GeoLocation {
	geo := &GeoLocation{
		Country:  strings.TrimSpace(c.Get(h.CountryHeader)),
		Region:   strings.TrimSpace(c.Get(h.RegionHeader)),
		City:     strings.TrimSpace(c.Get(h.CityHeader)),
		Timezone: strings.TrimSpace(c.Get(h.TimezoneHeader)),
		Loc:      strings.TrimSpace(c.Get(h.LocHeader)),
	}
	if *geo == (GeoLocation{}) {
		return nil
	}
	return geo
}

// RequestMetadata collects the session metadata of a fiber request
func RequestMetadata(c *fiber.Ctx, geo GeoAnnotator) SessionMetadata {
	if geo == nil {
		geo = noopGeo{}
	}
	return SessionMetadata{
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IP:        c.IP(),
		Geo:       geo.Annotate(c),
	}
}
