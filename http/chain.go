package http

// buildChain nests each middleware around the next, innermost being the
// terminal handler, so that the first-registered middleware runs outermost:
// pre-phases top-down, terminal handler, post-phases bottom-up.
//
// The continuation handed to each middleware is constructed fresh for every
// dispatch and may be invoked at most once. Not invoking it short-circuits
// the chain: nothing inside runs and whatever the middleware wrote stands
// as the response. A second invocation would re-run inner handlers, so it
// panics with *ChainUsageError instead.
func buildChain(mws []Middleware, terminal HandlerFunc) HandlerFunc {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		if mw == nil {
			continue
		}
		next := h
		h = func(ctx *Context) {
			mw(callOnce(next))(ctx)
		}
	}
	return h
}

func callOnce(next HandlerFunc) HandlerFunc {
	called := false
	return func(ctx *Context) {
		if called {
			panic(&ChainUsageError{Message: "continuation invoked twice"})
		}
		called = true
		next(ctx)
	}
}
