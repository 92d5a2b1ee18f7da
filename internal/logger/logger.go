package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	global *zap.SugaredLogger
	once   sync.Once
)

type Options struct {
	Development bool
}

// New returns the shared sugared logger, building it on first use. Development
// mode gets the console encoder; everything else logs JSON for ingestion.
func New(opt Options) (*zap.SugaredLogger, error) {
	var err error
	once.Do(func() {
		build := zap.NewProduction
		if opt.Development {
			build = zap.NewDevelopment
		}
		var l *zap.Logger
		if l, err = build(); err != nil {
			return
		}
		global = l.Sugar()
	})
	return global, err
}
