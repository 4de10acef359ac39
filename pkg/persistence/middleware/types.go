package middleware

import "github.com/aretw0/blueprint/pkg/ports"

// Middleware allows wrapping a Gateway to add behavior.
type Middleware func(ports.Gateway) ports.Gateway

// Chain wraps gw with mws. The first middleware is the outermost.
func Chain(gw ports.Gateway, mws ...Middleware) ports.Gateway {
	for i := len(mws) - 1; i >= 0; i-- {
		gw = mws[i](gw)
	}
	return gw
}
