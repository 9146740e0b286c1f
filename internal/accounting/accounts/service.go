package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// AuditPort records account mutations.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service implements the account registry.
type Service struct {
	repo   Repository
	cache  TreeCache
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the registry. cache and audit may be nil.
func NewService(repo Repository, cache TreeCache, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger, now: time.Now}
}

// List returns the organization accounts ordered by code.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope.OrganizationID)
}

// Get returns one account of the organization.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id int64) (Account, error) {
	if err := scope.Validate(); err != nil {
		return Account{}, err
	}
	return s.repo.Get(ctx, scope.OrganizationID, id)
}

// Create registers a new account. Level and posting flag derive from the code
// unless IsPosting is given; the parent is explicit or the longest code prefix.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, in CreateInput) (Account, error) {
	if err := scope.Validate(); err != nil {
		return Account{}, err
	}
	code := strings.TrimSpace(in.Code)
	if err := ValidateCode(code); err != nil {
		return Account{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Account{}, shared.ErrInvalidName
	}
	accountType, err := ParseAccountType(in.Type)
	if err != nil {
		return Account{}, err
	}
	account := Account{
		OrganizationID: scope.OrganizationID,
		CompanyID:      in.CompanyID,
		Code:           code,
		Name:           name,
		Type:           accountType,
		Level:          LevelOf(code),
		IsPosting:      DefaultPosting(code),
		IsActive:       true,
	}
	if in.IsPosting != nil {
		account.IsPosting = *in.IsPosting
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != nil {
			parent, err := tx.Get(ctx, scope.OrganizationID, *in.ParentID)
			if err != nil {
				return err
			}
			account.ParentID = &parent.ID
		} else {
			existing, err := tx.List(ctx, scope.OrganizationID)
			if err != nil {
				return err
			}
			if parent := resolveParent(existing, code, 0); parent != nil {
				account.ParentID = &parent.ID
			}
		}
		created, err := tx.Insert(ctx, account)
		if err != nil {
			return err
		}
		account = created
		return reattachChildren(ctx, tx, created, "")
	})
	if err != nil {
		return Account{}, err
	}
	s.afterMutation(ctx, scope, "account.create", account)
	return account, nil
}

// Update applies the given changes. Changing the type, or making a leaf
// non-postable, fails with ErrAccountHasPostings once posted lines exist.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, id int64, in UpdateInput) (Account, error) {
	if err := scope.Validate(); err != nil {
		return Account{}, err
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, scope.OrganizationID, id)
		if err != nil {
			return err
		}
		next := current
		var all []Account
		loadAll := func() error {
			if all != nil {
				return nil
			}
			all, err = tx.List(ctx, scope.OrganizationID)
			return err
		}

		if in.Code != nil {
			code := strings.TrimSpace(*in.Code)
			if err := ValidateCode(code); err != nil {
				return err
			}
			if code != current.Code {
				next.Code = code
				next.Level = LevelOf(code)
				next.IsPosting = DefaultPosting(code)
				if in.ParentID == nil {
					if err := loadAll(); err != nil {
						return err
					}
					next.ParentID = nil
					if parent := resolveParent(all, code, id); parent != nil && !isDescendant(all, id, parent.ID) {
						next.ParentID = &parent.ID
					}
				}
			}
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return shared.ErrInvalidName
			}
			next.Name = name
		}
		if in.Type != nil {
			accountType, err := ParseAccountType(*in.Type)
			if err != nil {
				return err
			}
			next.Type = accountType
		}
		if in.IsPosting != nil {
			next.IsPosting = *in.IsPosting
		}
		if in.ParentID != nil {
			if *in.ParentID == 0 {
				next.ParentID = nil
			} else {
				if *in.ParentID == id {
					return shared.ErrInvalidParent
				}
				parent, err := tx.Get(ctx, scope.OrganizationID, *in.ParentID)
				if err != nil {
					return err
				}
				if err := loadAll(); err != nil {
					return err
				}
				if isDescendant(all, id, parent.ID) {
					return shared.ErrInvalidParent
				}
				next.ParentID = &parent.ID
			}
		}

		if next.Type != current.Type || (current.IsPosting && !next.IsPosting) {
			posted, err := tx.HasPostedLines(ctx, scope.OrganizationID, id)
			if err != nil {
				return err
			}
			if posted {
				return shared.ErrAccountHasPostings
			}
		}
		updated, err = tx.Update(ctx, next)
		if err != nil || updated.Code == current.Code {
			return err
		}
		return reattachChildren(ctx, tx, updated, current.Code)
	})
	if err != nil {
		return Account{}, err
	}
	s.afterMutation(ctx, scope, "account.update", updated)
	return updated, nil
}

// reattachChildren moves accounts whose longest code prefix is now, or no
// longer, the given account.
func reattachChildren(ctx context.Context, tx TxRepository, moved Account, previousCode string) error {
	all, err := tx.List(ctx, moved.OrganizationID)
	if err != nil {
		return err
	}
	for _, child := range prefixReparents(all, moved, previousCode) {
		if _, err := tx.Update(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// Disable soft-disables an account; disabled accounts reject new postings.
func (s *Service) Disable(ctx context.Context, scope tenant.Scope, id int64) (Account, error) {
	if err := scope.Validate(); err != nil {
		return Account{}, err
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, scope.OrganizationID, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			updated = current
			return nil
		}
		current.IsActive = false
		updated, err = tx.Update(ctx, current)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.afterMutation(ctx, scope, "account.disable", updated)
	return updated, nil
}

// Delete removes an account no line references. Children move to its parent.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	var deleted Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, scope.OrganizationID, id)
		if err != nil {
			return err
		}
		used, err := tx.HasLines(ctx, scope.OrganizationID, id)
		if err != nil {
			return err
		}
		if used {
			return shared.ErrAccountInUse
		}
		if err := tx.ReparentChildren(ctx, scope.OrganizationID, id, current.ParentID); err != nil {
			return err
		}
		deleted = current
		return tx.Delete(ctx, scope.OrganizationID, id)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, scope, "account.delete", deleted)
	return nil
}

// Tree returns the organization chart as a forest.
func (s *Service) Tree(ctx context.Context, scope tenant.Scope) ([]*AccountNode, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	loader := func(ctx context.Context) ([]*AccountNode, error) {
		accounts, err := s.repo.List(ctx, scope.OrganizationID)
		if err != nil {
			return nil, err
		}
		return BuildTree(accounts), nil
	}
	if s.cache == nil {
		return loader(ctx)
	}
	return s.cache.Fetch(ctx, scope.OrganizationID, loader)
}

// IsPostable reports whether lines of the scope may reference id. Unknown and
// foreign accounts are not postable.
func (s *Service) IsPostable(ctx context.Context, scope tenant.Scope, id int64) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, err
	}
	account, err := s.repo.Get(ctx, scope.OrganizationID, id)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	return account.Postable(), nil
}

func (s *Service) afterMutation(ctx context.Context, scope tenant.Scope, action string, account Account) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, scope.OrganizationID); err != nil {
			s.logger.Warn("invalidate account tree", slog.Int64("organization_id", scope.OrganizationID), slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, internalShared.AuditLog{
		OrganizationID: scope.OrganizationID,
		ActorID:        scope.ActorID,
		Action:         action,
		Entity:         "account",
		EntityID:       strconv.FormatInt(account.ID, 10),
		Meta:           map[string]any{"code": account.Code, "type": account.Type},
		At:             s.now(),
	})
	if err != nil {
		s.logger.Warn("audit account", slog.String("action", action), slog.Any("error", err))
	}
}
