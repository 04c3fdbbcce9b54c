package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	errMsgInvalidConfigFile = "config: Failed to load config file (%v)"
)

// FromFile reads the file into the configuration. Errors are collected and
// returned by Errors.
func (c *Config) FromFile(filename string) *Config {
	c.protect.Lock()
	defer c.protect.Unlock()

	file, err := os.Open(filename)
	if err != nil {
		c.errors.addError(errMsgInvalidConfigFile, err)
		return c
	}
	defer file.Close()

	c.filename = filename
	c.fromReader(file)
	return c
}

// FromReader reads toml from reader into the configuration.
func (c *Config) FromReader(reader io.Reader) *Config {
	c.protect.Lock()
	defer c.protect.Unlock()

	c.fromReader(reader)
	return c
}

// FromString reads the toml in str into the configuration.
func (c *Config) FromString(str string) *Config {
	c.protect.Lock()
	defer c.protect.Unlock()

	values := make(map[string]interface{})
	if _, err := toml.Decode(str, &values); err != nil {
		c.errors.addError(errMsgInvalidConfigFile, err)
		return c
	}
	c.values = values
	return c
}

func (c *Config) fromReader(reader io.Reader) {
	values := make(map[string]interface{})
	if _, err := toml.DecodeReader(reader, &values); err != nil {
		c.errors.addError(errMsgInvalidConfigFile, err)
		return
	}
	c.values = values
}

// FromFile is a shortcut for New().FromFile(filename).
func FromFile(filename string) *Config {
	return New().FromFile(filename)
}
