package service

import (
	"context"
	"fmt"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/model"
	"github.com/dial-lab/dtrack/internal/repository"
)

// OptionService manages the admin-editable unit/vendor name lists.
type OptionService interface {
	// List returns the names under a type, alphabetically.
	List(ctx context.Context, s model.Session, typ string) ([]string, error)
	// Add inserts a name under a type. Admin only.
	Add(ctx context.Context, s model.Session, typ, name string) error
	// Remove deletes a name under a type. Admin only.
	Remove(ctx context.Context, s model.Session, typ, name string) error
}

type OptionServiceImpl struct {
	options repository.OptionRepository
	audit   *Auditor
}

// NewOptionService constructs OptionService.
func NewOptionService(options repository.OptionRepository, audit *Auditor) *OptionServiceImpl {
	return &OptionServiceImpl{options: options, audit: audit}
}

// List returns the names under a type.
func (s *OptionServiceImpl) List(ctx context.Context, sess model.Session, typ string) ([]string, error) {
	if err := checkOptionType(typ); err != nil {
		return nil, err
	}
	return s.options.List(ctx, typ)
}

// Add inserts a name under a type.
func (s *OptionServiceImpl) Add(ctx context.Context, sess model.Session, typ, name string) error {
	if !sess.IsAdmin() {
		return errs.ErrUnauthorized
	}
	if err := checkOptionType(typ); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: name required", errs.ErrValidation)
	}
	if err := s.options.Add(ctx, typ, name); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "add_"+typ+":"+name)
	return nil
}

// Remove deletes a name under a type.
func (s *OptionServiceImpl) Remove(ctx context.Context, sess model.Session, typ, name string) error {
	if !sess.IsAdmin() {
		return errs.ErrUnauthorized
	}
	if err := checkOptionType(typ); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: name required", errs.ErrValidation)
	}
	if err := s.options.Remove(ctx, typ, name); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "remove_"+typ+":"+name)
	return nil
}

func checkOptionType(typ string) error {
	if typ != model.OptionUnit && typ != model.OptionVendor {
		return fmt.Errorf("%w: type must be %s or %s", errs.ErrValidation, model.OptionUnit, model.OptionVendor)
	}
	return nil
}
