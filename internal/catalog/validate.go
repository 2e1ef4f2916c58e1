package catalog

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/pkg/rules"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateRule, rules.Rule{})
	return v
}

// validateRule checks the constraints of a rule that span several fields.
func validateRule(sl validator.StructLevel) {
	r := sl.Current().Interface().(rules.Rule)
	if strings.TrimSpace(r.Name) == "" {
		sl.ReportError(r.Name, "name", "Name", "required", "")
	}
	if r.Priority < 0 {
		sl.ReportError(r.Priority, "priority", "Priority", "gte", "0")
	}
	c := r.Conditions
	if c.MinWeight != nil && *c.MinWeight < 0 {
		sl.ReportError(*c.MinWeight, "min_weight", "MinWeight", "gte", "0")
	}
	if c.MinWeight != nil && c.MaxWeight != nil && *c.MaxWeight < *c.MinWeight {
		sl.ReportError(*c.MaxWeight, "max_weight", "MaxWeight", "gtefield", "min_weight")
	}
	for _, ids := range [][]int64{r.Effects.AllowIDs, r.Effects.DenyIDs, r.Effects.AddIDs, r.Effects.PreferIDs} {
		for _, id := range ids {
			if id <= 0 {
				sl.ReportError(id, "effects", "Effects", "gt", "0")
				return
			}
		}
	}
}

// check validates v and reports every violated field at once.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ErrInvalidConfigurationData.WithCause(err)
	}
	fields := make([]domain.FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = domain.FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		}
	}
	return domain.ErrInvalidConfigurationData.WithFields(fields)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
