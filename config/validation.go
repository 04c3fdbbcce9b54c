package config

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// validatorRules is used internally to validate a map.
type validatorRules struct {
	stringVals      []string
	stringSliceVals []string
	boolVals        []string
	floatVals       []string
	intVals         []string
	uintVals        []string
	mapVals         []string
	mapArrVals      []string
}

var globalValidator = validatorRules{
	stringVals: []string{
		"loglevel", "statedir", "linestack", "report_time", "markerdb",
		"metrics_listen",
	},
	stringSliceVals: []string{"match"},
	boolVals:        []string{"linestack_sync"},
	mapVals:         []string{"listener", "networks"},
	mapArrVals:      []string{"users"},
}

var networkValidator = validatorRules{
	stringVals: []string{
		"nick", "altnick", "username", "realname", "password", "socks5",
		"replication",
	},
	stringSliceVals: []string{"servers", "autojoin"},
	boolVals:        []string{"tls", "noverifycert", "noreconnect"},
	floatVals:       []string{"floodtimeout", "floodstep", "keepalive"},
	intVals:         []string{"report_time_offset"},
	uintVals: []string{
		"reconnecttimeout", "floodlenpenalty", "snapshot_interval",
	},
}

var listenerValidator = validatorRules{
	stringVals: []string{"listen", "password", "default_network"},
}

var userValidator = validatorRules{
	stringVals:      []string{"name", "password"},
	stringSliceVals: []string{"masks"},
}

// errList is an array of errors.
type errList []error

// addError builds an error object and appends it to this instances errors.
func (l *errList) addError(format string, args ...interface{}) {
	*l = append(*l, fmt.Errorf(format, args...))
}

// Errors returns the errors encountered while loading and validating.
func (c *Config) Errors() []error {
	c.protect.RLock()
	defer c.protect.RUnlock()

	ers := make([]error, 0, len(c.errors)+len(c.invalid))
	ers = append(ers, c.errors...)
	return append(ers, c.invalid...)
}

// Validate checks the configuration and returns every problem found, nil
// when it is usable. Errors from loading are included. The result is also
// kept for Errors and DisplayErrors.
func (c *Config) Validate() []error {
	ers := make(errList, 0)

	c.protect.RLock()
	c.validateTypes(&ers)
	c.protect.RUnlock()

	if len(ers) == 0 {
		c.validateRequired(&ers)
		c.validateValues(&ers)
	}

	c.protect.Lock()
	c.invalid = ers
	c.protect.Unlock()

	if all := c.Errors(); len(all) > 0 {
		return all
	}
	return nil
}

// validateRequired checks that all required fields are present.
func (c *Config) validateRequired(ers *errList) {
	nets := c.Networks()
	if len(nets) == 0 {
		ers.addError("Expected at least one network.")
		return
	}

	for _, name := range nets {
		ctx := c.Network(name)
		if srvs, ok := ctx.Servers(); !ok || len(srvs) == 0 {
			ers.addError("(%s) Expected at least one server.", name)
		}

		if n, ok := ctx.Nick(); !ok || len(n) == 0 {
			ers.addError("(%s) Nickname is required.", name)
		}
		if n, ok := ctx.Username(); !ok || len(n) == 0 {
			ers.addError("(%s) Username is required.", name)
		}
		if n, ok := ctx.Realname(); !ok || len(n) == 0 {
			ers.addError("(%s) Realname is required.", name)
		}
	}

	if l, ok := c.Listener(); ok && len(l.Listen) == 0 {
		ers.addError("(listener) listen is required.")
	}
	for i, u := range c.Users() {
		if len(u.Name) == 0 {
			ers.addError("(users %d) name is required.", i+1)
		}
	}
}

// validateValues checks values that have a fixed set of choices or a
// format.
func (c *Config) validateValues(ers *errList) {
	switch ls := c.Linestack(); ls {
	case "file", "kv":
	default:
		ers.addError("(global) linestack must be file or kv, given: %s", ls)
	}

	switch rt := c.ReportTime(); rt {
	case ReportTimeNever, ReportTimeReplication, ReportTimeAlways:
	default:
		ers.addError("(global) report_time must be never, replication or "+
			"always, given: %s", rt)
	}

	checkHash := func(ctx, hash string) {
		if len(hash) == 0 {
			return
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			ers.addError("(%s) password is not a bcrypt hash: %v", ctx, err)
		}
	}

	if l, ok := c.Listener(); ok {
		checkHash("listener", l.Password)
		if len(l.DefaultNetwork) > 0 && c.Network(l.DefaultNetwork) == nil {
			ers.addError("(listener) default_network %s is not configured.",
				l.DefaultNetwork)
		}
	}
	for i, u := range c.Users() {
		checkHash(fmt.Sprintf("users %d", i+1), u.Password)
	}
}

// validateTypes checks the types of all of the map's objects.
func (c *Config) validateTypes(ers *errList) {
	globalValidator.validateMap("global", c.values, ers)
	networkValidator.validateMap("global", c.values, ers)

	if nets := c.values.get("networks"); nets != nil {
		for name, netVal := range nets {
			if net := intfToMp(netVal); net == nil {
				ers.addError(
					"(global networks) %s is %T but expected map [%v]",
					name, netVal, netVal)
			} else {
				networkValidator.validateMap(name, net, ers)
			}
		}
	}

	if l := c.values.get("listener"); l != nil {
		listenerValidator.validateMap("listener", l, ers)
	}
	for i, u := range c.values.getArr("users") {
		userValidator.validateMap(fmt.Sprintf("users %d", i+1), u, ers)
	}
}

// validateMap checks map's values for correct types based on the validatorRules
func (v validatorRules) validateMap(name string,
	m map[string]interface{}, ers *errList) {

	addErr := func(name, key, kind string, val interface{}) {
		ers.addError("(%s) %s is %T but expected %s [%v]",
			name, key, val, kind, val)
	}

	for _, key := range v.stringVals {
		if val, ok := m[key]; !ok {
			continue
		} else if _, ok = val.(string); !ok {
			addErr(name, key, "string", val)
		}
	}
	for _, key := range v.stringSliceVals {
		if val, ok := m[key]; ok {
			switch v := val.(type) {
			case []interface{}:
				for i, val := range v {
					if _, ok := val.(string); !ok {
						indexErr := fmt.Sprintf("%s %d", key, i+1)
						addErr(name, indexErr, "string", val)
					}
				}
			case []string:
			default:
				addErr(name, key, "array", val)
			}
		}
	}
	for _, key := range v.boolVals {
		if val, ok := m[key]; !ok {
			continue
		} else if _, ok = val.(bool); !ok {
			addErr(name, key, "bool", val)
		}
	}
	for _, key := range v.floatVals {
		if val, ok := m[key]; !ok {
			continue
		} else {
			switch val.(type) {
			case float64, int64:
			default:
				addErr(name, key, "number", val)
			}
		}
	}
	for _, key := range v.intVals {
		if val, ok := m[key]; !ok {
			continue
		} else if _, ok = val.(int64); !ok {
			addErr(name, key, "int", val)
		}
	}
	for _, key := range v.uintVals {
		if val, ok := m[key]; !ok {
			continue
		} else if i, ok := val.(int64); !ok || i < 0 {
			addErr(name, key, "positive int", val)
		}
	}
	for _, key := range v.mapVals {
		if val, ok := m[key]; !ok {
			continue
		} else if intfToMp(val) == nil {
			addErr(name, key, "map", val)
		}
	}
	for _, key := range v.mapArrVals {
		if val, ok := m[key]; !ok {
			continue
		} else if _, ok = val.([]map[string]interface{}); !ok {
			addErr(name, key, "map array", val)
		}
	}
}
