package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

// DefaultReturnAddr is where the engine sends the browser after checkout.
const DefaultReturnAddr = "127.0.0.1:3000"

const (
	paidPage   = "<!doctype html><title>ShieldScan</title><p>Payment received. Return to your terminal to see the full report.</p>"
	unpaidPage = "<!doctype html><title>ShieldScan</title><p>No payment was recorded. You can close this tab.</p>"
)

// Listener serves the return page on a loopback address and delivers the
// first return URL it sees.
type Listener struct {
	ln   net.Listener
	srv  *http.Server
	ch   chan *url.URL
	once sync.Once
}

// Listen binds addr. An empty addr means DefaultReturnAddr.
func Listen(addr string) (*Listener, error) {
	if addr == "" {
		addr = DefaultReturnAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for checkout return on %s: %w", addr, err)
	}
	l := &Listener{ln: ln, ch: make(chan *url.URL, 1)}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.serveReturn)
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("component", "checkout").Msg("return listener stopped")
		}
	}()
	return l, nil
}

// Addr is the bound address.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// ReturnURL is the root URL the payment flow should redirect to.
func (l *Listener) ReturnURL() string { return "http://" + l.Addr() + "/" }

func (l *Listener) serveReturn(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	u := *r.URL
	u.Scheme = "http"
	u.Host = r.Host
	l.once.Do(func() { l.ch <- &u })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if PaymentCompleted(&u) {
		_, _ = w.Write([]byte(paidPage))
		return
	}
	_, _ = w.Write([]byte(unpaidPage))
}

// Wait blocks until the first return arrives or ctx is done.
func (l *Listener) Wait(ctx context.Context) (*url.URL, error) {
	select {
	case u := <-l.ch:
		return u, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.srv.Shutdown(ctx)
}

// Open launches the system browser on u. Browser output is discarded so it
// does not corrupt the terminal UI.
func Open(u string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return browser.OpenURL(u)
}
