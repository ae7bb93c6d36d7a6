package handler

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
)

// Route maps a same origin route to an upstream path.
type Route struct {
	Method string

	// Path is the fiber pattern below the group prefix.
	Path string

	// Upstream is the upstream pattern, ":name" segments are taken from the request params.
	Upstream string

	// Action is reported as details when the call fails.
	Action string
}

// Register adds routes to router, each forwarding through p.
func Register(router fiber.Router, p *proxy.Proxy, routes []Route) {
	for _, r := range routes {
		router.Add([]string{r.Method}, r.Path, Forwarder(p, r))
	}
}

// Forwarder returns the handler of a single route.
func Forwarder(p *proxy.Proxy, r Route) fiber.Handler {
	return func(c fiber.Ctx) error {
		return p.Forward(c, proxy.Target{
			Path:   ResolvePath(c, r.Upstream),
			Action: r.Action,
		})
	}
}

// ResolvePath replaces ":name" segments of pattern with the escaped request params.
func ResolvePath(c fiber.Ctx, pattern string) string {
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}

		value := c.Params(seg[1:])
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}

		segments[i] = url.PathEscape(value)
	}

	return strings.Join(segments, "/")
}
