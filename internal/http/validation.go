package httpapi

import (
	"encoding/json"

	"owl-location/internal/query"
	"owl-location/internal/repository"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// locationFieldRules: writable payload fields in report order, with the
// validator tag their non-null value must satisfy.
var locationFieldRules = []struct {
	name     string
	rule     string
	nullable bool
}{
	{name: "building", rule: "required"},
	{name: "name", rule: "required"},
	{name: "number", rule: "required"},
	{name: "area", rule: "required"},
	{name: query.ParentIDField, rule: "uuid", nullable: true},
}

// validateLocation checks a raw JSON object body and returns the patch to
// write. With partial, only keys present in body are checked; otherwise
// every non-nullable field must be present ("x is missing") and non-empty
// ("x is required"). Unknown keys are dropped.
func validateLocation(body map[string]json.RawMessage, partial bool) (repository.Patch, []FieldError) {
	patch := repository.Patch{}
	var fields []FieldError

	for _, f := range locationFieldRules {
		raw, present := body[f.name]
		if !present {
			if !partial && !f.nullable {
				fields = append(fields, FieldError{Name: f.name, Message: f.name + " is missing"})
			}
			continue
		}

		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			fields = append(fields, FieldError{Name: f.name, Message: f.name + " must be a string"})
			continue
		}
		if v == nil {
			if f.nullable {
				patch[f.name] = nil
				continue
			}
			fields = append(fields, FieldError{Name: f.name, Message: f.name + " is required"})
			continue
		}

		if err := validate.Var(*v, f.rule); err != nil {
			fields = append(fields, FieldError{Name: f.name, Message: fieldMessage(f.name, err)})
			continue
		}
		patch[f.name] = *v
	}
	return patch, fields
}

func fieldMessage(name string, err error) string {
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		switch ves[0].Tag() {
		case "required":
			return name + " is required"
		case "uuid":
			return name + " must be a valid uuid"
		}
	}
	return name + " is invalid"
}
