package serialmux

import (
	"context"
	"net/http"
)

// DisabledSerialMux stands in when no serial port is configured; inputs then
// arrive only over the HTTP API. It never produces lines, but subscriptions
// still close on Unsubscribe and Close so consumers shut down cleanly.
type DisabledSerialMux struct {
	subs *fanout
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{subs: newFanout(0)}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) { return d.subs.subscribe() }

func (d *DisabledSerialMux) Unsubscribe(id string) { d.subs.unsubscribe(id) }

func (d *DisabledSerialMux) SendCommand(string) error { return nil }

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Close() error {
	d.subs.close()
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial/disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("serial disabled"))
	})
}
