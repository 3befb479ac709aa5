package confloader

import (
	"reflect"
	"strings"
)

// envField is the koanf key an environment variable maps to.
type envField struct {
	key string
	// list fields take a comma separated value.
	list bool
}

// envKeys maps the underscore form of every koanf key in target's type,
// e.g. "discovery_scan_rate" to "discovery.scan_rate".
func envKeys(target any) map[string]envField {
	keys := make(map[string]envField)
	t := reflect.TypeOf(target)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return keys
	}
	collectKeys(t, "", keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys map[string]envField) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Struct && ft.String() != "time.Time":
			collectKeys(ft, key, keys)
			continue
		case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Struct:
			// Lists of sections, such as simulator.devices, only come from
			// the file.
			continue
		}
		keys[strings.ReplaceAll(key, ".", "_")] = envField{
			key:  key,
			list: ft.Kind() == reflect.Slice,
		}
	}
}
