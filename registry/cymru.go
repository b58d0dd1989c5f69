/*
	fgblock - a blocklist aggregation tool by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package registry

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
)

const (
	cymruOrigin4 = "origin.asn.cymru.com."
	cymruOrigin6 = "origin6.asn.cymru.com."
	cymruASN     = "asn.cymru.com."
)

// ErrNoTXTRecord is returned when the Team Cymru service has no data for an address
var ErrNoTXTRecord = errors.New("no TXT record")

// Cymru looks up registry data with the Team Cymru IP to ASN DNS service
type Cymru struct {
	server string
	client *dns.Client
}

// NewCymru creates a Cymru client that sends its queries to server (host:port)
func NewCymru(server string, timeout time.Duration) *Cymru {
	return &Cymru{
		server: server,
		client: &dns.Client{
			Timeout: timeout,
		},
	}
}

// Lookup returns the country of the announced prefix and the name of the announcing AS.
// The service has no region data.
func (c *Cymru) Lookup(ctx context.Context, addr netip.Addr) (data.Registry, error) {
	name, err := cymruOriginName(addr)
	if err != nil {
		return data.Registry{}, err
	}

	txt, err := c.txt(ctx, name)
	if err != nil {
		return data.Registry{}, err
	}

	asn, country, err := parseOriginTXT(txt)
	if err != nil {
		return data.Registry{}, err
	}

	reg := data.Registry{Country: country}

	txt, err = c.txt(ctx, fmt.Sprintf("AS%s.%s", asn, cymruASN))
	if err != nil {
		log.Warnf("no AS name for AS%s (%s): %s", asn, addr, err)
		return reg, nil
	}
	reg.ISP = parseASNameTXT(txt)

	return reg, nil
}

func (c *Cymru) txt(ctx context.Context, name string) (string, error) {
	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.SetQuestion(name, dns.TypeTXT)

	resp, _, err := c.client.ExchangeContext(ctx, m, c.server)
	if err != nil {
		log.Warnf("dns exchange error for %s: %s", name, err)
		return "", err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("%s: %s", name, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if t, ok := rr.(*dns.TXT); ok {
			return strings.Join(t.Txt, ""), nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNoTXTRecord)
}

// cymruOriginName returns the query name for the origin lookup of addr
func cymruOriginName(addr netip.Addr) (string, error) {
	addr = addr.Unmap()

	reverse, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return "", err
	}

	if addr.Is4() {
		return strings.TrimSuffix(reverse, "in-addr.arpa.") + cymruOrigin4, nil
	}
	return strings.TrimSuffix(reverse, "ip6.arpa.") + cymruOrigin6, nil
}

// parseOriginTXT parses "15169 | 8.8.8.0/24 | US | arin | 2023-12-28".
// Prefixes announced by several ASes list all of them, the first one is used.
func parseOriginTXT(txt string) (asn, country string, err error) {
	fields := splitTXT(txt)
	if len(fields) < 3 || fields[0] == "" {
		return "", "", fmt.Errorf("malformed origin record %q", txt)
	}

	asn = strings.Fields(fields[0])[0]
	return asn, fields[2], nil
}

// parseASNameTXT returns the AS name from "15169 | US | arin | 2000-03-30 | GOOGLE - Google LLC, US"
func parseASNameTXT(txt string) string {
	fields := splitTXT(txt)
	if len(fields) < 5 {
		return ""
	}
	return fields[4]
}

func splitTXT(txt string) []string {
	fields := strings.Split(txt, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
