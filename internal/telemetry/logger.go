// Package telemetry provides the runtime's structured logger. It is a
// direct descendant of the teacher's simple-kv/pkg/logger package: same
// zap.NewProduction() construction, same package-level sugared instance.
package telemetry

import "go.uber.org/zap"

var inst *zap.SugaredLogger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	inst = l.Sugar()
}

// Logger returns the process-wide sugared logger.
func Logger() *zap.SugaredLogger {
	return inst
}
