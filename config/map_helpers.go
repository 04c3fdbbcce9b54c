package config

// mp is used to provide helper methods on the map type we use most often
// this cleans up a lot of excessive type assertion stuff.
type mp map[string]interface{}

func intfToMp(intf interface{}) mp {
	switch m := intf.(type) {
	case map[string]interface{}:
		return m
	case mp:
		return m
	}
	return nil
}

func (m mp) get(name string) mp {
	if m == nil {
		return nil
	}

	if mpVal, ok := m[name]; ok {
		return intfToMp(mpVal)
	}

	return nil
}

func (m mp) getArr(name string) []map[string]interface{} {
	if m == nil {
		return nil
	}

	if mpVal, ok := m[name]; ok {
		switch v := mpVal.(type) {
		case []map[string]interface{}:
			return v
		}
	}

	return nil
}

type mapGetter interface {
	get(string) (interface{}, bool)
	getParent(string) (interface{}, bool)
	rlock()
	runlock()
}

// lookup finds key in the map, or in its parent when fallback is set.
func lookup(m mapGetter, key string, fallback bool) (interface{}, bool) {
	val, ok := m.get(key)
	if !ok && fallback {
		val, ok = m.getParent(key)
	}
	return val, ok
}

// getStr gets a string out of a map.
func getStr(m mapGetter, key string, fallback bool) (string, bool) {
	m.rlock()
	defer m.runlock()

	if val, ok := lookup(m, key, fallback); ok {
		if str, ok := val.(string); ok {
			return str, true
		}
	}

	return "", false
}

// getBool gets a bool out of a map.
func getBool(m mapGetter, key string, fallback bool) (bool, bool) {
	m.rlock()
	defer m.runlock()

	if val, ok := lookup(m, key, fallback); ok {
		if boolval, ok := val.(bool); ok {
			return boolval, true
		}
	}

	return false, false
}

// getUint gets an unsigned integer out of a map. toml decodes integers as
// int64, negative ones are refused.
func getUint(m mapGetter, key string, fallback bool) (uint, bool) {
	m.rlock()
	defer m.runlock()

	if val, ok := lookup(m, key, fallback); ok {
		switch u := val.(type) {
		case int64:
			if u >= 0 {
				return uint(u), true
			}
		case uint:
			return u, true
		}
	}

	return 0, false
}

// getInt gets a signed integer out of a map.
func getInt(m mapGetter, key string, fallback bool) (int, bool) {
	m.rlock()
	defer m.runlock()

	if val, ok := lookup(m, key, fallback); ok {
		switch i := val.(type) {
		case int64:
			return int(i), true
		case int:
			return i, true
		}
	}

	return 0, false
}

// getFloat64 gets a float out of a map, integers are accepted.
func getFloat64(m mapGetter, key string, fallback bool) (float64, bool) {
	m.rlock()
	defer m.runlock()

	if val, ok := lookup(m, key, fallback); ok {
		switch f := val.(type) {
		case float64:
			return f, true
		case int64:
			return float64(f), true
		}
	}

	return 0, false
}

// getStrArr gets a string array out of a map.
func getStrArr(m mapGetter, key string, fallback bool) ([]string, bool) {
	m.rlock()
	defer m.runlock()

	val, ok := lookup(m, key, fallback)
	if !ok {
		return nil, false
	}

	switch arr := val.(type) {
	case []string:
		if len(arr) == 0 {
			return nil, true
		}
		cpyArr := make([]string, len(arr))
		copy(cpyArr, arr)
		return cpyArr, true
	case []interface{}:
		if len(arr) == 0 {
			return nil, true
		}
		cpyArr := make([]string, 0, len(arr))
		for _, v := range arr {
			str, ok := v.(string)
			if !ok {
				return nil, false
			}
			cpyArr = append(cpyArr, str)
		}
		return cpyArr, true
	}

	return nil, false
}
