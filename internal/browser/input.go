package browser

import "context"

// typeable lists the input types that accept synthesized keystrokes.
var typeable = map[string]bool{
	"textarea":   true,
	"select-one": true,
	"text":       true,
	"url":        true,
	"tel":        true,
	"search":     true,
	"password":   true,
	"number":     true,
	"email":      true,
}

// Fill types text into el when it accepts keystrokes and otherwise assigns
// the value directly.
func Fill(ctx context.Context, d Driver, el Element, text string) error {
	kind, err := d.FieldType(ctx, el)
	if err != nil {
		return err
	}
	if typeable[kind] {
		return d.TypeText(ctx, el, text)
	}
	return d.SetFieldValue(ctx, el, text)
}
