package institution

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/NaveenRoman/AI-TUTor/core"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation("plan", planValidation)
	core.RegisterCustomTranslation(validate, translator, "plan", "{0} must be one of free, pro, enterprise")
}

func planValidation(fl validator.FieldLevel) bool {
	plan := fl.Field().String()
	for _, p := range Plans {
		if p == plan {
			return true
		}
	}
	return false
}
