package config

// Listener is the configuration of the port clients connect to.
type Listener struct {
	// Listen is the address to listen on.
	Listen string
	// Password is a bcrypt hash clients must match with PASS, empty allows
	// anyone in.
	Password string
	// DefaultNetwork is the network of clients that do not pick one.
	DefaultNetwork string
}

// User is an account allowed to use the proxy.
type User struct {
	Name     string
	Password string
	// Masks are hostmask patterns a client must match, none means any.
	Masks []string
}

// Listener returns the [listener] table, false when there is none.
func (c *Config) Listener() (Listener, bool) {
	c.protect.RLock()
	defer c.protect.RUnlock()

	var l Listener
	m := c.values.get("listener")
	if m == nil {
		return l, false
	}

	l.Listen, _ = m["listen"].(string)
	l.Password, _ = m["password"].(string)
	l.DefaultNetwork, _ = m["default_network"].(string)
	return l, true
}

// Users returns the [[users]] entries.
func (c *Config) Users() []User {
	c.protect.RLock()
	defer c.protect.RUnlock()

	arr := c.values.getArr("users")
	if len(arr) == 0 {
		return nil
	}

	ret := make([]User, len(arr))
	for i, u := range arr {
		ret[i].Name, _ = u["name"].(string)
		ret[i].Password, _ = u["password"].(string)
		if masks, ok := u["masks"].([]interface{}); ok {
			for _, mask := range masks {
				if s, ok := mask.(string); ok {
					ret[i].Masks = append(ret[i].Masks, s)
				}
			}
		}
	}
	return ret
}
