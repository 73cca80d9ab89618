package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"

	"github.com/isb-tools/billing-separator/internal/accountstore"
)

// AccountMoveAPI defines the Organizations call the mover needs.
type AccountMoveAPI interface {
	MoveAccount(ctx context.Context, params *organizations.MoveAccountInput, optFns ...func(*organizations.Options)) (*organizations.MoveAccountOutput, error)
}

// StatusSetter transitions an account record between statuses with an
// expected-prior-status condition.
type StatusSetter interface {
	SetStatus(ctx context.Context, accountID string, from, to accountstore.Status) error
}

// OuResolver resolves an OU by name, fresh on every call.
type OuResolver interface {
	Resolve(ctx context.Context, name string) (Ou, error)
}

// Transaction is one two-step account move: the status update in the
// account table, then the OU move in Organizations. Begin runs both
// and reverts the status update itself if the OU move fails; Rollback
// reverts whatever Begin completed.
type Transaction interface {
	Begin(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Mover moves sandbox accounts between status OUs transactionally.
type Mover struct {
	orgs     AccountMoveAPI
	resolver OuResolver
	accounts StatusSetter
}

// NewMover creates a Mover.
func NewMover(orgs AccountMoveAPI, resolver OuResolver, accounts StatusSetter) *Mover {
	return &Mover{orgs: orgs, resolver: resolver, accounts: accounts}
}

// BeginTransactionalMove prepares a move of the account from one
// status OU to another. Nothing runs until Begin is called.
func (m *Mover) BeginTransactionalMove(account *accountstore.Account, from, to accountstore.Status) Transaction {
	return &moveTransaction{
		mover:   m,
		account: account,
		from:    from,
		to:      to,
	}
}

type moveTransaction struct {
	mover   *Mover
	account *accountstore.Account
	from    accountstore.Status
	to      accountstore.Status

	statusUpdated bool
	moved         bool
}

func (t *moveTransaction) Begin(ctx context.Context) error {
	m := t.mover
	accountID := t.account.AwsAccountID

	fromOu, err := m.resolver.Resolve(ctx, string(t.from))
	if err != nil {
		return fmt.Errorf("failed to resolve source OU: %w", err)
	}
	toOu, err := m.resolver.Resolve(ctx, string(t.to))
	if err != nil {
		return fmt.Errorf("failed to resolve destination OU: %w", err)
	}

	if err := m.accounts.SetStatus(ctx, accountID, t.from, t.to); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	t.statusUpdated = true

	_, err = m.orgs.MoveAccount(ctx, &organizations.MoveAccountInput{
		AccountId:           aws.String(accountID),
		SourceParentId:      aws.String(fromOu.ID),
		DestinationParentId: aws.String(toOu.ID),
	})
	if err != nil {
		// The status update already committed; revert it so the record
		// and the OU placement stay consistent.
		if rbErr := t.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("failed to move account %s to %s OU: %w (rollback also failed: %v)",
				accountID, t.to, err, rbErr)
		}
		return fmt.Errorf("failed to move account %s to %s OU: %w", accountID, t.to, err)
	}
	t.moved = true

	return nil
}

func (t *moveTransaction) Rollback(ctx context.Context) error {
	m := t.mover
	accountID := t.account.AwsAccountID
	var errs []error

	if t.moved {
		fromOu, err := m.resolver.Resolve(ctx, string(t.from))
		toOu, err2 := m.resolver.Resolve(ctx, string(t.to))
		if err != nil || err2 != nil {
			errs = append(errs, fmt.Errorf("failed to resolve OUs for rollback: %w", errors.Join(err, err2)))
		} else {
			_, err := m.orgs.MoveAccount(ctx, &organizations.MoveAccountInput{
				AccountId:           aws.String(accountID),
				SourceParentId:      aws.String(toOu.ID),
				DestinationParentId: aws.String(fromOu.ID),
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to move account %s back to %s OU: %w", accountID, t.from, err))
			} else {
				t.moved = false
			}
		}
	}

	if t.statusUpdated {
		if err := m.accounts.SetStatus(ctx, accountID, t.to, t.from); err != nil {
			errs = append(errs, fmt.Errorf("failed to revert status of account %s: %w", accountID, err))
		} else {
			t.statusUpdated = false
		}
	}

	return errors.Join(errs...)
}
