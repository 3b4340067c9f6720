package llm

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultMaxTokens   = 256
	DefaultTemperature = 1.0
	DefaultTopP        = 1.0
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// GenerationParams are the caller-tunable sampling parameters. MaxTokens of
// zero leaves the limit to the provider.
type GenerationParams struct {
	MaxTokens   int     `json:"max_tokens" validate:"gte=0"`
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
	TopP        float64 `json:"top_p" validate:"gte=0,lte=1"`
}

// DefaultParams returns the parameters used when no option overrides them.
func DefaultParams() GenerationParams {
	return GenerationParams{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// GenerateOption overrides one generation parameter.
type GenerateOption func(*GenerationParams)

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) GenerateOption {
	return func(p *GenerationParams) { p.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(p *GenerationParams) { p.Temperature = t }
}

// WithTopP sets nucleus sampling.
func WithTopP(topP float64) GenerateOption {
	return func(p *GenerationParams) { p.TopP = topP }
}

// ResolveParams applies opts over the defaults and validates the result.
func ResolveParams(opts ...GenerateOption) (GenerationParams, error) {
	params := DefaultParams()
	for _, opt := range opts {
		opt(&params)
	}
	return params, params.Validate()
}

var paramBounds = map[string]string{
	"max_tokens":  ">= 0",
	"temperature": "between 0 and 2",
	"top_p":       "between 0 and 1",
}

// Validate checks every parameter against its range and reports the first
// violation as a *ValidationError.
func (p GenerationParams) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}
	fe := validationErrors[0]
	bound, ok := paramBounds[fe.Field()]
	if !ok {
		bound = fmt.Sprintf("%s %s", fe.Tag(), fe.Param())
	}
	return &ValidationError{
		Param: fe.Field(),
		Value: fe.Value(),
		Bound: bound,
	}
}
