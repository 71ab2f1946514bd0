package logger

import "go.uber.org/zap"

// New builds the process logger. Development mode logs human-readable
// output at debug level.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
