// SPDX-License-Identifier: MIT
package validate

import "slices"

// LogLevels are the zerolog level names accepted in configuration.
var LogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}

// LogLevel validates a zerolog level name. Empty means the default.
func (v *Validator) LogLevel(field, level string) {
	if level == "" || slices.Contains(LogLevels, level) {
		return
	}
	v.AddError(field, "invalid log level", level)
}
