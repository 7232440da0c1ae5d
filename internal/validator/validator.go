// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"compras/internal/models"
	"compras/internal/workflow"
)

var (
	validRoles      = set(models.Roles)
	validAreas      = set(models.AreaNames)
	validLocations  = set(models.LocationNames)
	validCategories = set(models.CategoryCodes)
	validStatuses   = set(models.RequestStatuses)
	validActions    = set(workflow.Actions)
)

func set[T ~string](values []T) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[string(v)] = true
	}
	return m
}

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("role", oneOf(validRoles))
		_ = v.RegisterValidation("area_name", oneOf(validAreas))
		_ = v.RegisterValidation("location_name", oneOf(validLocations))
		_ = v.RegisterValidation("category_code", oneOf(validCategories))
		_ = v.RegisterValidation("request_status", oneOf(validStatuses))
		_ = v.RegisterValidation("request_action", oneOf(validActions))
		_ = v.RegisterValidation("urgency", validateUrgency)
		_ = v.RegisterValidation("month", validateMonth)
		_ = v.RegisterValidation("year", validateYear)
	}
}

func oneOf(allowed map[string]bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return allowed[fl.Field().String()]
	}
}

func validateUrgency(fl validator.FieldLevel) bool {
	switch models.Urgency(fl.Field().String()) {
	case models.UrgencyNormal, models.UrgencyUrgente:
		return true
	}
	return false
}

func validateMonth(fl validator.FieldLevel) bool {
	m := fl.Field().Int()
	return m >= 1 && m <= 12
}

func validateYear(fl validator.FieldLevel) bool {
	y := fl.Field().Int()
	return y >= 2000 && y <= 2100
}
