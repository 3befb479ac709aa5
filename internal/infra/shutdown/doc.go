// Package shutdown coordinates process termination.
//
// Components register named hooks as they start. When SIGINT or SIGTERM
// arrives, or the parent context ends, the hooks run in reverse
// registration order under a shared deadline:
//
//	h := shutdown.NewHandler(10*time.Second, shutdown.WithLogger(log))
//	h.OnShutdown("http", srv.Shutdown)
//	h.OnShutdown("fleet", fleet.Shutdown)
//	err := h.Wait(ctx)
package shutdown
