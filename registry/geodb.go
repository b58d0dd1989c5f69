package registry

import (
	"context"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
	"github.com/scraperwall/asndb/v2"
	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
)

// GeoDB looks up registry data in local databases: a MaxMind City database
// for country and region and, optionally, an asndb file for the organization
type GeoDB struct {
	city *geoip2.Reader
	asn  *asndb.DB
}

// NewGeoDB opens the databases. asnFile may be empty
func NewGeoDB(cityFile, asnFile string) (*GeoDB, error) {
	city, err := geoip2.Open(cityFile)
	if err != nil {
		return nil, err
	}

	g := &GeoDB{city: city}

	if asnFile != "" {
		g.asn, err = asndb.New(asnFile)
		if err != nil {
			city.Close()
			return nil, err
		}
		log.Infof("asndb loaded with %d records", g.asn.Size())
	}

	return g, nil
}

// Lookup returns the country and region of addr and the organization announcing it
func (g *GeoDB) Lookup(_ context.Context, addr netip.Addr) (data.Registry, error) {
	ip := net.IP(addr.Unmap().AsSlice())

	rec, err := g.city.City(ip)
	if err != nil {
		return data.Registry{}, err
	}

	reg := data.Registry{
		Country: rec.Country.Names["en"],
	}
	if len(rec.Subdivisions) > 0 {
		reg.Region = rec.Subdivisions[0].Names["en"]
	}

	if g.asn != nil {
		if a := g.asn.Lookup(ip); a != nil {
			reg.ISP = a.Organization
		}
	}

	return reg, nil
}

// Close closes the City database
func (g *GeoDB) Close() error {
	return g.city.Close()
}
