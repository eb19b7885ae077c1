package serrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	base := NewError("ROSTER_INPUT", "row is not usable", "")
	wrapped := fmt.Errorf("%w: headcount missing", base)

	require.Equal(t, "ROSTER_INPUT", CodeOf(wrapped, "UNKNOWN"))
	require.Equal(t, "UNKNOWN", CodeOf(errors.New("plain"), "UNKNOWN"))
	require.ErrorIs(t, wrapped, base)
}

func TestWithTemplateData_DoesNotMutateSentinel(t *testing.T) {
	base := NewError("X", "x", "")
	withData := base.WithTemplateData(map[string]string{"k": "v"})

	require.Nil(t, base.TemplateData)
	require.Equal(t, "v", withData.TemplateData["k"])
}

func TestProcessValidatorErrors(t *testing.T) {
	type payload struct {
		Name  string `validate:"required"`
		Count int    `validate:"min=1"`
	}
	err := validator.New().Struct(payload{})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	out := ProcessValidatorErrors(verrs, func(field string) string { return "Fields." + field })
	require.Len(t, out, 2)
	require.Equal(t, "FIELD_REQUIRED", out["Name"].Code)
	require.Equal(t, "FIELD_INVALID", out["Count"].Code)
	require.Equal(t, "Fields.Count", out["Count"].LocaleKey)
	require.Equal(t, "1", out["Count"].TemplateData["param"])
}
