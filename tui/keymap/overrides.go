// Package keymap applies user key binding overrides to bubbles key maps.
package keymap

import (
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
)

var bindingType = reflect.TypeOf(key.Binding{})

// Overrides maps a snake_case binding name to the keys that trigger it.
type Overrides map[string][]string

// Apply replaces the key.Binding fields of the struct km points to with the
// keys named in overrides. PageUp is addressed as "page_up". Help text is
// kept and shows the first key. Apply returns the override names that
// matched no binding, sorted.
func Apply(km interface{}, overrides Overrides) []string {
	if len(overrides) == 0 {
		return nil
	}
	v := reflect.ValueOf(km)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	used := make(map[string]bool, len(overrides))
	apply(v.Elem(), overrides, used)

	var unknown []string
	for name := range overrides {
		if !used[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func apply(v reflect.Value, overrides Overrides, used map[string]bool) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		// Exported bindings of an unexported embedded struct are still settable.
		if fieldType.Anonymous && field.Kind() == reflect.Struct {
			apply(field, overrides, used)
			continue
		}
		if !field.CanSet() {
			continue
		}
		if fieldType.Type != bindingType {
			continue
		}

		name := camelToSnake(fieldType.Name)
		keys, ok := overrides[name]
		if !ok {
			continue
		}
		used[name] = true
		if len(keys) == 0 {
			continue
		}
		current := field.Interface().(key.Binding)
		field.Set(reflect.ValueOf(key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(keys[0], current.Help().Desc),
		)))
	}
}

// camelToSnake converts NextFilter to next_filter.
func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
