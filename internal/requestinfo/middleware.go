// internal/requestinfo/middleware.go
//
// Stage that attaches *Info to every request.
//
/*
Context
--------
Enrich sits right after the request-id stage.  For every request it:

  1. Parses the User-Agent header and Accept-Language list.
  2. Resolves the client IP from X-Forwarded-For, X-Real-Ip, or the
     remote address.
  3. Looks the IP up in GeoLite2 when a database was loaded.
  4. Stores the result as an attachment under Key.

Notes
-----
  • All look-ups are read-only, so the stage is safe under concurrency.
  • Oxford commas, two spaces after periods.
*/
package requestinfo

import (
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/pipeline"
)

// Key is the attachment key for *Info.
const Key = "requestinfo"

// Enrich returns the stage.  geo may be nil.
func Enrich(geo *GeoDB) pipeline.Stage {
	return pipeline.Func("client-info", func(req *pipeline.Request) pipeline.Result {
		info := &Info{
			UA:        ParseUA(req.Header.Get("User-Agent"), req.Header.Get("Accept-Language")),
			Geo:       geo.Lookup(ClientIP(req.HTTP())),
			Timestamp: time.Now().UTC(),
		}

		zap.S().Debugw("request info",
			"ip", info.Geo.IP,
			"country", info.Geo.CountryISO,
			"city", info.Geo.City,
			"browser", info.UA.Browser,
			"device", info.UA.Device,
			"bot", info.UA.IsBot,
			"path", req.Path,
		)

		req.Set(Key, info)
		return pipeline.Next()
	})
}

// From returns the *Info attached by Enrich, or nil.
func From(req *pipeline.Request) *Info {
	v, _ := req.Get(Key)
	info, _ := v.(*Info)
	return info
}
