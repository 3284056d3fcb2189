package mutation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/swrcache/transport"
)

var (
	ErrInsufficientFunds  = errors.New("mutation: insufficient points")
	ErrOutOfStock         = errors.New("mutation: product out of stock")
	ErrProductInactive    = errors.New("mutation: product inactive")
	ErrAlreadyInProgress  = errors.New("mutation: redemption already in progress")
	ErrRedemptionRejected = errors.New("mutation: redemption rejected by server")
)

// domainError maps a 4xx redemption response to a domain sentinel, keeping
// the HTTP error in the chain. 401 and everything else pass through.
func domainError(err error) error {
	var he *transport.HTTPError
	if !errors.As(err, &he) || he.Status == http.StatusUnauthorized || he.Status < 400 || he.Status > 499 {
		return err
	}
	body := strings.ToLower(he.Body)
	switch {
	case he.Status == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	case strings.Contains(body, "stock"):
		return fmt.Errorf("%w: %w", ErrOutOfStock, err)
	case strings.Contains(body, "insufficient"),
		strings.Contains(body, "points"),
		strings.Contains(body, "balance"):
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	return err
}
