// Package validator extends validator.Validate with regex and notblank rules.
package validator

import (
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validate is a custom validator that extends the base validator.Validate.
type Validate struct {
	validator.Validate
}

var (
	regexMu    sync.Mutex
	regexCache = map[string]*regexp.Regexp{}
)

// New creates a new instance of Validate
func New() *Validate {
	validate := &Validate{
		Validate: *validator.New(),
	}

	if err := validate.RegisterValidation("regex", validateRegex); err != nil {
		log.Fatalf("failed to register regex validator: %s", err)
	}
	if err := validate.RegisterValidation("notblank", validateNotBlank); err != nil {
		log.Fatalf("failed to register notblank validator: %s", err)
	}

	return validate
}

// Name validates a single entry name the same way the `name` struct tags do.
func (v *Validate) Name(name string) error {
	return v.Var(name, "notblank,max=255,regex=^[^/\\\\]+$")
}

// validateRegex checks that the field matches the regular expression given as
// the tag parameter. Compiled expressions are cached per pattern.
func validateRegex(fl validator.FieldLevel) bool {
	pattern := fl.Param()

	regexMu.Lock()
	re, ok := regexCache[pattern]
	if !ok {
		re = regexp.MustCompile(pattern)
		regexCache[pattern] = re
	}
	regexMu.Unlock()

	return re.MatchString(fl.Field().String())
}

// validateNotBlank fails for strings that are empty after trimming whitespace.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
