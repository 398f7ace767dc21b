package virtual

import (
	"strings"

	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/router"
	"github.com/indigo-web/utils/strcomp"
)

var _ router.Router = new(Router)

type virtualHost struct {
	Domain string
	Router router.Router
}

// Router dispatches requests between other routers by the Host header. Requests to unknown
// hosts go to the default router, or are responded with 421 Misdirected Request if there's
// none.
type Router struct {
	hosts         []virtualHost
	defaultRouter router.Router
}

// New returns a new instance of the virtual Router
func New() *Router {
	return &Router{}
}

// Host adds a new virtual host. If 0.0.0.0 is passed, the router will be set as a default one
func (r *Router) Host(host string, other router.Router) *Router {
	host = Normalize(host)
	if TrimPort(host) == "0.0.0.0" {
		return r.Default(other)
	}

	r.hosts = append(r.hosts, virtualHost{
		Domain: host,
		Router: other,
	})

	return r
}

// Default sets the router for requests, Host header value of which isn't matched.
func (r *Router) Default(def router.Router) *Router {
	r.defaultRouter = def
	return r
}

func (r *Router) OnRequest(request *http.Request) *http.Response {
	if target := r.lookup(request.Headers.Value("host")); target != nil {
		return target.OnRequest(request)
	}

	return http.Respond(status.MisdirectedRequest)
}

// OnError passes the error to the default router. Errors occur before the request is
// complete, so the host can't be trusted.
func (r *Router) OnError(err error) *http.Response {
	if r.defaultRouter != nil {
		return r.defaultRouter.OnError(err)
	}

	return http.Error(err)
}

func (r *Router) lookup(host string) router.Router {
	host = Normalize(host)
	for _, vhost := range r.hosts {
		if strcomp.EqualFold(vhost.Domain, host) {
			return vhost.Router
		}
	}

	return r.defaultRouter
}

// Normalize drops the www. prefix and default ports, so that equal hosts compare equal.
func Normalize(domain string) string {
	domain = strings.TrimPrefix(domain, "www.")

	for i := len(domain) - 1; i >= 0; i-- {
		if domain[i] == '.' || domain[i] == ']' {
			break
		} else if domain[i] == ':' {
			switch domain[i+1:] {
			case "80", "443":
				// non-default ports must always be presented
				domain = domain[:i]
			}

			break
		}
	}

	return domain
}

// TrimPort returns the host without a port. IPv6 literals are kept in brackets.
func TrimPort(domain string) string {
	if colon := strings.LastIndexByte(domain, ':'); colon != -1 && !strings.HasSuffix(domain, "]") {
		return domain[:colon]
	}

	return domain
}
