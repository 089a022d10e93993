package config

// DetectFormat exports detectFormat for testing.
var DetectFormat = detectFormat

// MapLookup adapts a map to LookupFunc.
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
