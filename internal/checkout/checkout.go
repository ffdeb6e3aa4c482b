// Package checkout handles the return trip from the external payment flow.
package checkout

import (
	"errors"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/store"
)

// PaidParam is the query parameter the payment flow sets on return.
const PaidParam = "paid"

// PaymentCompleted reports whether nav carries a true paid marker. Values
// are read with strconv.ParseBool; anything unparseable counts as unpaid.
func PaymentCompleted(nav *url.URL) bool {
	if nav == nil {
		return false
	}
	v := nav.Query().Get(PaidParam)
	if v == "" {
		return false
	}
	paid, err := strconv.ParseBool(v)
	return err == nil && paid
}

// Reconcile builds the event for a return to nav. The store is read only when
// payment completed. A missing or unreadable record yields no stored result;
// store errors are logged and never returned.
func Reconcile(nav *url.URL, st store.ResultStore) session.PaymentReturned {
	ev := session.PaymentReturned{Paid: PaymentCompleted(nav)}
	if !ev.Paid || st == nil {
		return ev
	}
	logger := log.With().Str("component", "checkout").Logger()
	r, err := st.Get()
	var derr *store.DecodeError
	switch {
	case err == nil:
		ev.Stored = &r
	case errors.Is(err, store.ErrNotFound):
		logger.Debug().Msg("no stored result to restore")
	case errors.As(err, &derr):
		logger.Warn().Err(err).Msg("discarding unreadable stored result")
	default:
		logger.Warn().Err(err).Msg("read stored result")
	}
	return ev
}

// Session is the part of session.Controller the handler drives.
type Session interface {
	State() session.State
	Dispatch(session.Event) (session.State, error)
}

// Handler runs the return-trip reconciliation at most once. Create one per
// entry into the application.
type Handler struct {
	store store.ResultStore
	once  sync.Once
}

func NewHandler(st store.ResultStore) *Handler {
	return &Handler{store: st}
}

// Enter reconciles nav against the store and applies the outcome to s. Only
// the first call does anything; later calls report ran == false and return
// the current state.
func (h *Handler) Enter(s Session, nav *url.URL) (state session.State, ran bool, err error) {
	h.once.Do(func() {
		ran = true
		ev := Reconcile(nav, h.store)
		if !ev.Paid {
			state = s.State()
			return
		}
		state, err = s.Dispatch(ev)
	})
	if !ran {
		state = s.State()
	}
	return state, ran, err
}
