package conditional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateLiterals(t *testing.T) {
	got, err := Evaluate("true")
	assert.NoError(t, err)
	assert.True(t, got)

	got, err = Evaluate("false")
	assert.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateAndOrNot(t *testing.T) {
	cases := map[string]bool{
		"and(true, false)":     false,
		"and(true, true)":      true,
		"or(false, false)":     false,
		"or(false, true)":      true,
		"not(false)":           true,
		"not(and(true, true))": false,
		"or(not(true), true)":  true,
	}
	for expr, want := range cases {
		got, err := Evaluate(expr)
		assert.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}
}

func TestEvaluateComparisons(t *testing.T) {
	cases := map[string]bool{
		`eq("ok", "ok")`: true,
		`eq("ok", "no")`: false,
		`ne("ok", "no")`: true,
		"gt(5, 3)":       true,
		"gt(3, 5)":       false,
		"lt(3, 5)":       true,
	}
	for expr, want := range cases {
		got, err := Evaluate(expr)
		assert.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}
}

func TestEvaluateFileExists(t *testing.T) {
	got, err := Evaluate(`file_exists("/nonexistent/path/for/test")`)
	assert.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateEnvExists(t *testing.T) {
	t.Setenv("RECIPERUN_TEST_VAR", "1")
	got, err := Evaluate(`env_exists("RECIPERUN_TEST_VAR")`)
	assert.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateNonBooleanResultErrors(t *testing.T) {
	_, err := Evaluate(`"just a string"`)
	assert.Error(t, err)
}

func TestEvaluateUnknownFunctionErrors(t *testing.T) {
	_, err := Evaluate(`bogus(true)`)
	assert.Error(t, err)
}

func TestEvaluateMalformedExpressionErrors(t *testing.T) {
	_, err := Evaluate(`and(true,`)
	assert.Error(t, err)
}
