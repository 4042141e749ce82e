// Package cliconfig loads command configuration structs from urfave/cli
// flags, their environment variables, and an optional dotenv config file.
//
// It is intended for internal use by actionkit only.
package cliconfig

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/actionkit/actionkit/env"
	"github.com/actionkit/actionkit/logger"
	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
)

// Loader fills Config from the fields' struct tags:
//
//	cli:"name"        flag to read, or arg:N / arg:* for positional args
//	normalize:"..."   filepath or list
//	validate:"..."    comma separated rules: required, file-exists
//	label:"..."       name used in validation errors
type Loader struct {
	// The context that is passed when using a urfave/cli action
	CLI *cli.Context

	// The struct that the config values will be loaded into
	Config any

	// The logger used
	Logger logger.Logger

	// The file that was used when loading this configuration
	File *File
}

// Matches "arg:index" (specific non-flag arg) or "arg:*" (all non-flag args).
var argCLINameRE = regexp.MustCompile(`arg:(\d+|\*)`)

// Load loads the config from the CLI and the config file, if any, and
// returns any warnings or errors.
func (l *Loader) Load() (warnings []string, err error) {
	// A config file passed in manually must exist.
	if path := l.CLI.String("config"); path != "" {
		file := File{Path: path}
		if !file.Exists() {
			absolutePath, _ := file.AbsolutePath()
			return warnings, fmt.Errorf("a configuration file could not be found at: %q", absolutePath)
		}
		if err := file.Load(); err != nil {
			return warnings, fmt.Errorf("loading config file: %w", err)
		}
		l.File = &file

		for key := range file.Config {
			if l.CLI.App != nil && !l.flagDefined(key) {
				warnings = append(warnings, fmt.Sprintf("Config file %s sets unknown option %q", path, key))
			}
		}
	}

	fields, _ := reflections.FieldsDeep(l.Config)

	for _, fieldName := range fields {
		cliName, _ := reflections.GetFieldTag(l.Config, fieldName, "cli")
		if cliName != "" {
			if err := l.setFieldValueFromCLI(fieldName, cliName); err != nil {
				return warnings, fmt.Errorf("setting config field %s: %w", fieldName, err)
			}
		}

		if normalization, _ := reflections.GetFieldTag(l.Config, fieldName, "normalize"); normalization != "" {
			if err := l.normalizeField(fieldName, normalization); err != nil {
				return warnings, fmt.Errorf("normalizing config field %s: %w", fieldName, err)
			}
		}

		if validationRules, _ := reflections.GetFieldTag(l.Config, fieldName, "validate"); validationRules != "" {
			label, _ := reflections.GetFieldTag(l.Config, fieldName, "label")
			if label == "" {
				if cliName != "" {
					label = cliName
				} else {
					label = fieldName
				}
			}

			if err := l.validateField(fieldName, label, validationRules); err != nil {
				return warnings, err
			}
		}
	}

	return warnings, nil
}

func (l Loader) setFieldValueFromCLI(fieldName, cliName string) error {
	fieldKind, err := reflections.GetFieldKind(l.Config, fieldName)
	if err != nil {
		return fmt.Errorf("getting the kind of struct field %q: %w", fieldName, err)
	}
	fieldType, err := reflections.GetFieldType(l.Config, fieldName)
	if err != nil {
		return fmt.Errorf("getting the type of struct field %q: %w", fieldName, err)
	}

	var value any

	if argMatch := argCLINameRE.FindStringSubmatch(cliName); len(argMatch) > 0 {
		if argMatch[1] == "*" {
			value = []string(l.CLI.Args())
		} else {
			argIndex, err := strconv.Atoi(argMatch[1])
			if err != nil {
				return fmt.Errorf("converting string to int: %w", err)
			}
			if len(l.CLI.Args()) > argIndex {
				value = l.CLI.Args()[argIndex]
			}
		}
	} else {
		// Config file values are the default...
		if l.File != nil {
			if configFileValue, ok := l.File.Config[cliName]; ok {
				value, err = convert(configFileValue, fieldKind, fieldType)
				if err != nil {
					return fmt.Errorf("config file option %s: %w", cliName, err)
				}
			}
		}

		// ...and flags or their environment variables override them.
		if value == nil || l.cliValueIsSet(cliName) {
			value, err = l.cliValue(cliName, fieldKind, fieldType)
			if err != nil {
				return err
			}
		}
	}

	if value != nil {
		if err := reflections.SetField(l.Config, fieldName, value); err != nil {
			return fmt.Errorf("setting value field %q to %q: %w", fieldName, value, err)
		}
	}

	return nil
}

func (l Loader) cliValue(cliName string, fieldKind reflect.Kind, fieldType string) (any, error) {
	switch fieldKind {
	case reflect.Slice:
		return l.CLI.StringSlice(cliName), nil
	case reflect.String, reflect.Bool, reflect.Int, reflect.Int64:
		// Bool and int fields may be backed by string flags, so that workflow
		// inputs such as "yes" or "" are understood.
		s := l.stringValue(cliName)
		if fieldKind == reflect.String {
			return s, nil
		}
		if s == "" {
			return zeroValue(fieldKind, fieldType), nil
		}
		v, err := convert(s, fieldKind, fieldType)
		if err != nil {
			if fieldKind == reflect.Bool {
				return nil, fmt.Errorf("invalid value %q for --%s: want true or false", s, cliName)
			}
			return nil, fmt.Errorf("invalid value %q for --%s: %w", s, cliName, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unable to handle type: %s", fieldKind)
	}
}

func zeroValue(fieldKind reflect.Kind, fieldType string) any {
	switch {
	case fieldKind == reflect.Bool:
		return false
	case fieldKind == reflect.Int:
		return 0
	case fieldType == "time.Duration":
		return time.Duration(0)
	default:
		return int64(0)
	}
}

// stringValue returns the flag's value as a string. An environment variable
// that is present but empty counts as unset: the next variable in the flag's
// EnvVar list applies, and then the flag's declared default.
func (l Loader) stringValue(cliName string) string {
	if s := l.CLI.String(cliName); s != "" {
		return s
	}

	flag := l.flag(cliName)
	if flag == nil {
		return ""
	}
	for _, name := range envVarNames(flag) {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	if def, err := reflections.GetField(flag, "Value"); err == nil {
		if s, ok := def.(string); ok {
			return s
		}
	}
	return ""
}

func (l Loader) flag(cliName string) cli.Flag {
	for _, flag := range l.CLI.Command.Flags {
		for n := range strings.SplitSeq(flag.GetName(), ",") {
			if strings.TrimSpace(n) == cliName {
				return flag
			}
		}
	}
	return nil
}

func envVarNames(flag cli.Flag) []string {
	envVar, err := reflections.GetField(flag, "EnvVar")
	if err != nil {
		return nil
	}
	s, ok := envVar.(string)
	if !ok || s == "" {
		return nil
	}
	var names []string
	for name := range strings.SplitSeq(s, ",") {
		names = append(names, strings.TrimSpace(name))
	}
	return names
}

func convert(s string, fieldKind reflect.Kind, fieldType string) (any, error) {
	switch fieldKind {
	case reflect.String:
		return s, nil
	case reflect.Slice:
		return strings.Split(s, ","), nil
	case reflect.Bool:
		return env.ParseBool(s)
	case reflect.Int:
		return strconv.Atoi(s)
	case reflect.Int64:
		switch fieldType {
		case "int64":
			return strconv.ParseInt(s, 10, 64)
		case "time.Duration":
			return time.ParseDuration(s)
		default:
			return nil, fmt.Errorf("unsupported field type %s for kind int64", fieldType)
		}
	default:
		return nil, fmt.Errorf("unable to convert string to type %s", fieldKind)
	}
}

func (l Loader) Errorf(format string, v ...any) error {
	suffix := fmt.Sprintf(" See: `%s %s --help`", l.CLI.App.Name, l.CLI.Command.FullName())

	return fmt.Errorf(format+suffix, v...)
}

func (l Loader) flagDefined(name string) bool {
	return name == "config" || l.flag(name) != nil
}

// cliValueIsSet reports whether cliName was given on the command line or by
// a non-empty environment variable.
func (l Loader) cliValueIsSet(cliName string) bool {
	// cli.Context#IsSet is also true when one of the flag's environment
	// variables is present, even if it is empty.
	if !l.CLI.IsSet(cliName) {
		return false
	}

	flag := l.flag(cliName)
	if flag == nil {
		return true
	}
	names := envVarNames(flag)
	for _, name := range names {
		if os.Getenv(name) != "" {
			return true
		}
	}
	for _, name := range names {
		if _, ok := os.LookupEnv(name); ok {
			// Only empty variables are present, so the value came from the
			// command line if there is one.
			return l.CLI.String(cliName) != ""
		}
	}
	return true
}

func (l Loader) fieldValueIsEmpty(fieldName string) bool {
	value, _ := reflections.GetField(l.Config, fieldName)
	fieldKind, _ := reflections.GetFieldKind(l.Config, fieldName)

	switch fieldKind {
	case reflect.String:
		return value == ""
	case reflect.Slice:
		v := reflect.ValueOf(value)
		return v.Len() == 0
	case reflect.Bool:
		return value == false
	case reflect.Int:
		return value == 0
	case reflect.Int64:
		return reflect.ValueOf(value).Int() == 0
	default:
		panic(fmt.Sprintf("Can't determine empty-ness for field type %s", fieldKind))
	}
}

func (l Loader) validateField(fieldName, label, validationRules string) error {
	for rule := range strings.SplitSeq(validationRules, ",") {
		switch rule {
		case "required":
			if l.fieldValueIsEmpty(fieldName) {
				return l.Errorf("Missing %s.", label)
			}

		case "file-exists":
			value, _ := reflections.GetField(l.Config, fieldName)
			if valueAsString, ok := value.(string); ok && valueAsString != "" {
				if _, err := os.Stat(valueAsString); err != nil {
					return fmt.Errorf("couldn't find %s located at %s: %w", label, value, err)
				}
			}

		default:
			return fmt.Errorf("unknown config validation rule %q", rule)
		}
	}

	return nil
}

func (l Loader) normalizeField(fieldName, normalization string) error {
	value, _ := reflections.GetField(l.Config, fieldName)
	fieldKind, _ := reflections.GetFieldKind(l.Config, fieldName)

	switch normalization {
	case "filepath":
		if fieldKind != reflect.String {
			return fmt.Errorf("filepath normalization only works on string fields")
		}

		if valueAsString, ok := value.(string); ok {
			normalizedPath, err := NormalizeFilePath(valueAsString)
			if err != nil {
				return err
			}
			return reflections.SetField(l.Config, fieldName, normalizedPath)
		}

	case "list":
		if fieldKind != reflect.Slice {
			return fmt.Errorf("list normalization only works on slice fields")
		}

		if valueAsSlice, ok := value.([]string); ok {
			normalizedSlice := []string{}
			for _, value := range valueAsSlice {
				// Split values with commas or newlines into fields. Multi-line
				// workflow inputs put one value per line.
				for normalized := range strings.FieldsFuncSeq(value, func(r rune) bool { return r == ',' || r == '\n' }) {
					normalized = strings.TrimSpace(normalized)
					if normalized == "" {
						continue
					}
					normalizedSlice = append(normalizedSlice, normalized)
				}
			}
			return reflections.SetField(l.Config, fieldName, normalizedSlice)
		}

	default:
		return fmt.Errorf("unknown normalization %q", normalization)
	}

	return nil
}
