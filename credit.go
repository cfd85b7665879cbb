package smbclient

import (
	"context"
	"errors"

	"github.com/smbclient-go/smbclient/internal/logger"
)

// account holds the credits granted by the server as tokens in a buffered
// channel. A request may only be sent after loaning its charge.
type account struct {
	credits chan struct{}
	max     uint16
	metrics *metrics
}

func openAccount(maxCreditBalance uint16, m *metrics) *account {
	a := &account{
		credits: make(chan struct{}, maxCreditBalance),
		max:     maxCreditBalance,
		metrics: m,
	}
	a.credits <- struct{}{} // the NEGOTIATE credit
	m.setCredits(1)
	return a
}

var errAccountClosed = errors.New("credit account closed")

// loan blocks until one credit is available and then takes up to charge
// credits without blocking further. It returns the number taken. Closing
// done ends the wait with errAccountClosed.
func (a *account) loan(ctx context.Context, done <-chan struct{}, charge uint16) (uint16, error) {
	if charge == 0 {
		charge = 1
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	select {
	case <-a.credits:
	default:
		logger.Debug("waiting for credits", logger.KeyCharge, charge)
		select {
		case <-a.credits:
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-done:
			return 0, errAccountClosed
		}
	}

	granted := uint16(1)
loop:
	for granted < charge {
		select {
		case <-a.credits:
			granted++
		default:
			break loop
		}
	}

	a.metrics.setCredits(len(a.credits))

	return granted, nil
}

// grant returns n credits to the balance. Credits beyond the balance
// limit are dropped.
func (a *account) grant(n uint16) {
	for i := uint16(0); i < n; i++ {
		select {
		case a.credits <- struct{}{}:
		default:
			a.metrics.setCredits(len(a.credits))
			return
		}
	}
	a.metrics.setCredits(len(a.credits))
}

// request returns the CreditRequest to send with a request charging charge:
// enough to replace what it consumes and refill the balance.
func (a *account) request(charge uint16) uint16 {
	want := a.max - uint16(len(a.credits))
	if want < charge {
		return charge
	}
	return want
}

func (a *account) balance() int {
	return len(a.credits)
}

// creditsFor returns the charge of a payload of size bytes.
func creditsFor(size int) uint16 {
	if size <= 0 {
		return 1
	}
	return uint16((size-1)/creditUnit + 1)
}
