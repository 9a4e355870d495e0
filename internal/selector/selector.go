package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unifarma/shipping-service/internal/entities"
)

type AccountRepo interface {
	GetCRMMappedAccount(ctx context.Context, field, value string) (entities.Account, error)
	ListActiveAccounts(ctx context.Context, carrierHint string, accountType entities.AccountType) ([]entities.Account, error)
}

// Selector resolves which carrier account handles an order. CRM carrier
// fields are free text and unreliable, so explicit operator overrides are
// consulted before any heuristic, and the heuristics fall through in
// strict priority order rather than scoring.
type Selector struct {
	logger      *slog.Logger
	repo        AccountRepo
	crmField    string
	homeCountry string
}

func New(logger *slog.Logger, repo AccountRepo, crmField, homeCountry string) *Selector {
	return &Selector{
		logger:      logger.With(slog.String("service", "selector")),
		repo:        repo,
		crmField:    crmField,
		homeCountry: homeCountry,
	}
}

// Select returns the account for the given hints, first match wins:
//
//  1. active operator override for the raw carrier field value
//  2. specific_country account whose allow-list contains the destination
//  3. domestic account when the destination is the home country
//  4. international account otherwise
//  5. first active candidate by creation order
//
// Candidates in steps 2-5 are narrowed by the carrier and account-type
// hints when present. Returns ErrAccountNotFound when nothing matches.
func (s *Selector) Select(ctx context.Context, carrierHint, destinationCountry string, accountTypeHint entities.AccountType) (entities.Account, error) {
	if carrierHint != "" {
		account, err := s.repo.GetCRMMappedAccount(ctx, s.crmField, carrierHint)
		if err == nil {
			s.logger.Debug("override mapping matched",
				slog.String("carrier_hint", carrierHint), slog.Int64("account_id", account.ID))
			return account, nil
		}
		if !errors.Is(err, entities.ErrAccountNotFound) {
			return entities.Account{}, fmt.Errorf("failed to check override mapping: %w", err)
		}
	}

	candidates, err := s.repo.ListActiveAccounts(ctx, carrierHint, accountTypeHint)
	if err != nil {
		return entities.Account{}, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(candidates) == 0 {
		return entities.Account{}, entities.ErrAccountNotFound
	}

	if destinationCountry != "" {
		if account, ok := s.pickByCountry(candidates, destinationCountry); ok {
			return account, nil
		}
	}

	s.logger.Debug("falling back to first active candidate",
		slog.String("carrier_hint", carrierHint), slog.Int64("account_id", candidates[0].ID))
	return candidates[0], nil
}

func (s *Selector) pickByCountry(candidates []entities.Account, country string) (entities.Account, bool) {
	for _, a := range candidates {
		if a.Type == entities.AccountTypeSpecificCountry && a.ServesCountry(country) {
			return a, true
		}
	}

	wanted := entities.AccountTypeInternational
	if s.isDomestic(country) {
		wanted = entities.AccountTypeDomestic
	}

	for _, a := range candidates {
		if a.Type == wanted {
			return a, true
		}
	}

	return entities.Account{}, false
}

func (s *Selector) isDomestic(country string) bool {
	return strings.EqualFold(country, s.homeCountry)
}
