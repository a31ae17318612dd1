// Package vars keeps a registry of configuration values together with their
// environment variable names, defaults and validation messages.
package vars

import (
	"errors"
	"fmt"
	"os"

	"github.com/datarhei/relay/config/value"
	"github.com/datarhei/relay/log"
)

var ErrNotFound = errors.New("variable not found")

type variable struct {
	value       value.Value
	defVal      string
	name        string
	envName     string
	description string
	required    bool
	merged      bool
}

// Variable is the public description of a registered value.
type Variable struct {
	Value       string `json:"value"`
	Default     string `json:"default"`
	Name        string `json:"name"`
	EnvName     string `json:"env"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Merged      bool   `json:"merged"`
}

type message struct {
	message  string
	variable Variable
	level    log.Level
}

type Variables struct {
	vars []*variable
	logs []message
}

// Register adds a value. The current value of val becomes its default.
func (vs *Variables) Register(val value.Value, name, envName, description string, required bool) {
	vs.vars = append(vs.vars, &variable{
		value:       val,
		defVal:      val.String(),
		name:        name,
		envName:     envName,
		description: description,
		required:    required,
	})
}

// Transfer copies the merged flags from another registry with the same
// variables.
func (vs *Variables) Transfer(from *Variables) {
	for _, v := range vs.vars {
		if from.IsMerged(v.name) {
			v.merged = true
		}
	}
}

func (vs *Variables) SetDefault(name string) {
	if v := vs.find(name); v != nil {
		v.value.Set(v.defVal)
	}
}

func (vs *Variables) Get(name string) (string, error) {
	v := vs.find(name)
	if v == nil {
		return "", ErrNotFound
	}

	return v.value.String(), nil
}

func (vs *Variables) Set(name, val string) error {
	v := vs.find(name)
	if v == nil {
		return ErrNotFound
	}

	return v.value.Set(val)
}

// Merge overrides the values with the environment variables that are set.
func (vs *Variables) Merge() {
	for _, v := range vs.vars {
		if len(v.envName) == 0 {
			continue
		}

		envval, ok := os.LookupEnv(v.envName)
		if !ok {
			continue
		}

		if err := v.value.Set(envval); err != nil {
			vs.log(log.Lerror, v, "%s", err.Error())
			continue
		}

		v.merged = true
	}
}

func (vs *Variables) IsMerged(name string) bool {
	v := vs.find(name)
	if v == nil {
		return false
	}

	return v.merged
}

// Validate validates all values and records a message for each problem.
func (vs *Variables) Validate() {
	for _, v := range vs.vars {
		if err := v.value.Validate(); err != nil {
			vs.log(log.Lerror, v, "%s", err.Error())
		}

		if v.required && v.value.IsEmpty() {
			vs.log(log.Lerror, v, "a value is required")
		}
	}
}

// Log records a message for the variable with the name.
func (vs *Variables) Log(level log.Level, name string, format string, args ...interface{}) {
	if v := vs.find(name); v != nil {
		vs.log(level, v, format, args...)
	}
}

func (vs *Variables) log(level log.Level, v *variable, format string, args ...interface{}) {
	vs.logs = append(vs.logs, message{
		message:  fmt.Sprintf(format, args...),
		variable: v.describe(),
		level:    level,
	})
}

func (vs *Variables) ResetLogs() {
	vs.logs = nil
}

// Messages calls logger for each recorded message.
func (vs *Variables) Messages(logger func(level log.Level, v Variable, message string)) {
	for _, l := range vs.logs {
		logger(l.level, l.variable, l.message)
	}
}

func (vs *Variables) HasErrors() bool {
	for _, l := range vs.logs {
		if l.level == log.Lerror {
			return true
		}
	}

	return false
}

// Overrides returns the names of the values set from the environment.
func (vs *Variables) Overrides() []string {
	overrides := []string{}

	for _, v := range vs.vars {
		if v.merged {
			overrides = append(overrides, v.name)
		}
	}

	return overrides
}

// List returns all variables in the order of registration.
func (vs *Variables) List() []Variable {
	list := make([]Variable, 0, len(vs.vars))

	for _, v := range vs.vars {
		list = append(list, v.describe())
	}

	return list
}

func (vs *Variables) find(name string) *variable {
	for _, v := range vs.vars {
		if v.name == name {
			return v
		}
	}

	return nil
}

func (v *variable) describe() Variable {
	return Variable{
		Value:       v.value.String(),
		Default:     v.defVal,
		Name:        v.name,
		EnvName:     v.envName,
		Description: v.description,
		Required:    v.required,
		Merged:      v.merged,
	}
}
