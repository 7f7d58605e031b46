// Package customers reads the link between a verified user and their
// payments-provider customer record. The link is owned by the database;
// nothing here ever writes it.
package customers

import (
	"context"

	"github.com/projectdesk/api-proxy/internal/errs"
)

// Column holding the payments-provider customer id
const Column = "stripe_customer_id"

// Link is one user's customer record
type Link struct {
	UserID     string
	CustomerID string
}

// Lookup resolves a user id to its customer link. Implementations hold
// privileged credentials and must only be handed verified user ids.
type Lookup interface {
	CustomerLink(ctx context.Context, userID string) (*Link, error)
}

// ErrNoCustomer is returned when the user has no customer on file
var ErrNoCustomer = errs.New(errs.AuthorizationGap, "No Stripe customer on file for this account")

func linkFrom(userID string, ids []*string) (*Link, error) {
	if len(ids) != 1 || ids[0] == nil || *ids[0] == "" {
		return nil, ErrNoCustomer
	}
	return &Link{UserID: userID, CustomerID: *ids[0]}, nil
}
