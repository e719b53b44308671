package tool

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/mitchellh/mapstructure"
)

// Validator is an interface for request types that support validation
type Validator interface {
	Validate() error
}

// Func is a typed tool implementation.
type Func[Req, Resp any] func(context.Context, Req) (Resp, error)

// Adapter turns a typed Func into a Tool. It centralizes:
// - the accepted-parameter set (from Req's mapstructure tags)
// - argument decoding (mapstructure, weakly typed so JSON numbers fit ints)
// - request validation
// - response conversion to Payload
type Adapter[Req, Resp any] struct {
	definition provider.ToolDefinition
	accepted   map[string]struct{}
	fn         Func[Req, Resp]
}

// New creates an adapter. Req must be a struct.
//
// Example usage:
//
//	t := tool.New(
//	    "check_stock_availability",
//	    "Use when the user asks whether a medication is in stock...",
//	    &provider.ParameterSchema{...},
//	    catalog.CheckStock,
//	)
func New[Req, Resp any](name, description string, params *provider.ParameterSchema, fn Func[Req, Resp]) *Adapter[Req, Resp] {
	return &Adapter[Req, Resp]{
		definition: provider.ToolDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
		accepted: acceptedKeys(reflect.TypeFor[Req]()),
		fn:       fn,
	}
}

// Definition implements Tool
func (a *Adapter[Req, Resp]) Definition() provider.ToolDefinition {
	return a.definition
}

// Accepts implements Tool
func (a *Adapter[Req, Resp]) Accepts(key string) bool {
	_, ok := a.accepted[key]
	return ok
}

// Execute implements Tool
func (a *Adapter[Req, Resp]) Execute(ctx context.Context, args map[string]any) (Payload, error) {
	var req Req

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	if v, ok := any(req).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("%s validation failed: %w", a.definition.Name, err)
		}
	}

	resp, err := a.fn(ctx, req)
	if err != nil {
		return nil, err
	}

	return toPayload(resp)
}

// acceptedKeys lists the mapstructure keys of a struct type's fields.
func acceptedKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{})
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return keys
	}
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		keys[name] = struct{}{}
	}
	return keys
}
