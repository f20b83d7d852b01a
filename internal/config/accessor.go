package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrUnknownPath is returned for dot paths that name no config value.
var ErrUnknownPath = errors.New("unknown config path")

// tree is the JSON object form of a config, the shape dot paths address.
type tree = map[string]any

func toTree(cfg *Config) (tree, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var t tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// lookup walks path through t. Array elements are addressed by index.
func lookup(t tree, path string) (any, error) {
	var cur any = t
	for _, key := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case tree:
			next, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil, fmt.Errorf("%w: %s (bad index %q)", ErrUnknownPath, path, key)
			}
			cur = v[i]
		default:
			return nil, fmt.Errorf("%w: %s (%s is a value)", ErrUnknownPath, path, key)
		}
	}
	return cur, nil
}

// GetByPath returns the value at a dot path such as "briefing.maxColors".
func GetByPath(cfg *Config, path string) (any, error) {
	t, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	return lookup(t, path)
}

// SetByPath sets the value at a dot path in place. String input is parsed
// into the type of the addressed field, with comma separated text for lists.
// Fields left out of the JSON form, such as empty optional ones, can still be
// set, and so can fields of new entries in the providers map.
func SetByPath(cfg *Config, path string, value any) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrUnknownPath)
	}
	keys := strings.Split(path, ".")
	typ, err := fieldType(reflect.TypeOf(*cfg), keys)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	v, err := coerce(value, typ)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	t, err := toTree(cfg)
	if err != nil {
		return err
	}
	parent := t
	for i, key := range keys[:len(keys)-1] {
		child, ok := parent[key].(tree)
		if !ok {
			child = tree{}
			if i == 1 && keys[0] == "providers" {
				child["kind"] = "openai"
			}
			parent[key] = child
		}
		parent = child
	}
	parent[keys[len(keys)-1]] = v

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	var next Config
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	*cfg = next
	return nil
}

// fieldType resolves keys against the Config type by JSON field name. Map
// levels accept any key.
func fieldType(t reflect.Type, keys []string) (reflect.Type, error) {
	for _, key := range keys {
		switch t.Kind() {
		case reflect.Struct:
			f, ok := jsonField(t, key)
			if !ok {
				return nil, fmt.Errorf("no field %q", key)
			}
			t = f.Type
		case reflect.Map:
			t = t.Elem()
		default:
			return nil, fmt.Errorf("%q is past a value", key)
		}
	}
	if t.Kind() == reflect.Struct || t.Kind() == reflect.Map {
		return nil, errors.New("not a value")
	}
	return t, nil
}

func jsonField(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

// coerce converts string input to the JSON form of a field of type t.
func coerce(v any, t reflect.Type) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch t.Kind() {
	case reflect.String:
		return s, nil
	case reflect.Bool:
		return strconv.ParseBool(s)
	case reflect.Int, reflect.Int64:
		return strconv.ParseInt(s, 10, 64)
	case reflect.Float64:
		return strconv.ParseFloat(s, 64)
	case reflect.Slice:
		out := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported field type %s", t)
}

// Sanitize returns a copy of cfg with every secret masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Providers = make(map[string]ProviderConfig, len(cfg.Providers))
	for name, p := range cfg.Providers {
		p.APIKey = mask(p.APIKey)
		out.Providers[name] = p
	}
	out.General.FailoverChain = append([]string(nil), cfg.General.FailoverChain...)
	out.Channels.Telegram.AllowFrom = append(FlexStringList(nil), cfg.Channels.Telegram.AllowFrom...)
	out.Channels.Telegram.Token = mask(cfg.Channels.Telegram.Token)
	out.Channels.Web.APIKey = mask(cfg.Channels.Web.APIKey)
	out.Voice.APIKey = mask(cfg.Voice.APIKey)
	return &out
}

// mask keeps the first and last four characters of long secrets.
func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

// ListPaths returns every leaf path of cfg with its value.
func ListPaths(cfg *Config) map[string]any {
	t, err := toTree(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	var walk func(prefix string, m tree)
	walk = func(prefix string, m tree) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if sub, ok := v.(tree); ok && len(sub) > 0 {
				walk(k, sub)
				continue
			}
			out[k] = v
		}
	}
	walk("", t)
	return out
}
