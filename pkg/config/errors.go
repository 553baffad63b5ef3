package config

import (
	"strings"

	"github.com/chorusdev/chorus/pkg/apperr"
)

func missingModelsError(missing []string) error {
	return apperr.Newf(apperr.ConfigInvalid,
		"workflow configuration references undefined model(s): %s",
		strings.Join(missing, ", "))
}
