package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"
)

func TestIPWhoisLookup(t *testing.T) {
	var query string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"country":"Germany","region":"Bavaria","connection":{"isp":"Deutsche Telekom AG"}}`))
	}))
	defer ts.Close()

	w := NewIPWhois(ts.URL+"/", 2*time.Second)
	reg, err := w.Lookup(context.Background(), netip.MustParseAddr("80.1.2.3"))
	if err != nil {
		t.Fatal(err)
	}

	if query != "/80.1.2.3?fields=country,region,connection.isp" {
		t.Errorf("unexpected request %s", query)
	}

	if reg.Country != "Germany" || reg.Region != "Bavaria" || reg.ISP != "Deutsche Telekom AG" {
		t.Errorf("unexpected registry data %+v", reg)
	}
	if c := reg.Comment(); c != "Germany | Bavaria | Deutsche Telekom AG" {
		t.Errorf("unexpected comment %q", c)
	}
}

func TestIPWhoisUnsuccessful(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Reserved range"}`))
	}))
	defer ts.Close()

	_, err := NewIPWhois(ts.URL, 2*time.Second).Lookup(context.Background(), netip.MustParseAddr("10.0.0.1"))
	if err == nil || err.Error() != "Reserved range" {
		t.Errorf("the lookup should fail with the service's message but returned %v", err)
	}
}

func TestIPWhoisHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	if _, err := NewIPWhois(ts.URL, 2*time.Second).Lookup(context.Background(), netip.MustParseAddr("1.1.1.1")); err == nil {
		t.Error("a 429 response should be an error")
	}
}
