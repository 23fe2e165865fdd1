package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	toggleFlagTypeName       = "bool"
	toggleFlagImplicitValue  = "true"
	toggleFlagAcceptedValues = "true, false, yes, no, on, off, 1, 0"
	toggleFlagErrorFormat    = "invalid value %q for --%s; accepted values: %s"
)

var toggleLiterals = map[string]bool{
	"true":  true,
	"t":     true,
	"1":     true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"false": false,
	"f":     false,
	"0":     false,
	"no":    false,
	"n":     false,
	"off":   false,
}

// parseToggle interprets a yes/no style literal. An empty input means true.
func parseToggle(input string) (bool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return true, true
	}
	value, known := toggleLiterals[normalized]
	return value, known
}

// toggleFlag is a pflag.Value accepting yes/no literals in addition to Go booleans.
type toggleFlag struct {
	name   string
	target *bool
}

func (flag *toggleFlag) Set(input string) error {
	value, known := parseToggle(input)
	if !known {
		return fmt.Errorf(toggleFlagErrorFormat, input, flag.name, toggleFlagAcceptedValues)
	}
	*flag.target = value
	return nil
}

func (flag *toggleFlag) String() string {
	if flag.target == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*flag.target)
}

func (flag *toggleFlag) Type() string {
	return toggleFlagTypeName
}

// registerToggleFlag binds a toggleFlag to target under name.
func registerToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	if flagSet == nil || target == nil {
		return
	}
	*target = defaultValue
	flagSet.Var(&toggleFlag{name: name, target: target}, name, usage)
	registered := flagSet.Lookup(name)
	registered.DefValue = strconv.FormatBool(defaultValue)
	registered.NoOptDefVal = toggleFlagImplicitValue
}

// joinToggleArguments rewrites "--flag no" into "--flag=no" for every toggle
// flag known to command or its children, so the literal is not taken as a
// positional argument.
func joinToggleArguments(command *cobra.Command, arguments []string) []string {
	toggles := map[string]struct{}{}
	collectToggleNames(command, toggles)
	if len(toggles) == 0 {
		return arguments
	}
	joined := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == "--" {
			return append(joined, arguments[index:]...)
		}
		name, isLongFlag := strings.CutPrefix(argument, "--")
		if isLongFlag && !strings.Contains(name, "=") && index+1 < len(arguments) {
			if _, isToggle := toggles[name]; isToggle {
				if _, known := parseToggle(arguments[index+1]); known && arguments[index+1] != "" && !strings.HasPrefix(arguments[index+1], "-") {
					joined = append(joined, argument+"="+arguments[index+1])
					index++
					continue
				}
			}
		}
		joined = append(joined, argument)
	}
	return joined
}

func collectToggleNames(command *cobra.Command, names map[string]struct{}) {
	if command == nil {
		return
	}
	record := func(flag *pflag.Flag) {
		if flag.Value != nil && flag.Value.Type() == toggleFlagTypeName {
			names[flag.Name] = struct{}{}
		}
	}
	command.PersistentFlags().VisitAll(record)
	command.Flags().VisitAll(record)
	for _, child := range command.Commands() {
		collectToggleNames(child, names)
	}
}
