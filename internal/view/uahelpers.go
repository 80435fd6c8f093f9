// internal/view/uahelpers.go
//
// Client-info template helpers.  Each takes the *requestinfo.Info a page
// handler passes in its data and tolerates nil, so templates can call
// {{ browser .Client }} without guarding.
package view

import (
	"html/template"

	"github.com/yanizio/relay/internal/requestinfo"
)

func uaFuncMap() template.FuncMap {
	return template.FuncMap{
		"browser":        func(i *requestinfo.Info) string { return field(i, func(u requestinfo.UA) string { return u.Browser }) },
		"browserVersion": func(i *requestinfo.Info) string { return field(i, func(u requestinfo.UA) string { return u.Version }) },
		"os":             func(i *requestinfo.Info) string { return field(i, func(u requestinfo.UA) string { return u.OS }) },
		"device":         func(i *requestinfo.Info) string { return field(i, func(u requestinfo.UA) string { return u.Device }) },
		"isBot":          func(i *requestinfo.Info) bool { return i != nil && i.UA.IsBot },
		"country": func(i *requestinfo.Info) string {
			if i == nil {
				return ""
			}
			return i.Geo.CountryISO
		},
	}
}

func field(i *requestinfo.Info, get func(requestinfo.UA) string) string {
	if i == nil {
		return ""
	}
	return get(i.UA)
}
