package data

import "strings"

// Registry contains the registry metadata known about an address.
// Any field may be empty.
type Registry struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	ISP     string `json:"isp"`
}

// Comment renders the registry data as "country | region | isp", leaving out empty fields
func (r Registry) Comment() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Country, r.Region, r.ISP} {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

// IsEmpty reports whether no field is set
func (r Registry) IsEmpty() bool {
	return r.Country == "" && r.Region == "" && r.ISP == ""
}
