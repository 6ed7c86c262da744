package attrs

// ExtractString pulls a string value out of a key-value attribute slice
// formatted as [key1, value1, key2, value2, ...]. The second return reports
// whether the key was present with a string value.
func ExtractString(attrs []any, key string) (string, bool) {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if k == key {
			if v, ok := attrs[i+1].(string); ok {
				return v, true
			}
		}
	}
	return "", false
}
