package service

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/client"
	"github.com/smartmeetingai/api/internal/storage"
)

// LocalMedia is the local media tree shared by the services
type LocalMedia interface {
	storage.MediaStore
	Open(key string) (afero.File, error)
	Exists(key string) bool
	KeyForURL(raw string) (string, bool)
}

// runChain calls the configured providers in order and returns the first
// success. When none is configured the first provider runs in stub mode.
func runChain[P client.Provider, R any](providers []P, logger *zap.Logger, call func(P) (R, error)) (R, string, error) {
	var zero R
	if len(providers) == 0 {
		return zero, "", errors.New("no provider available")
	}

	var configured []P
	for _, p := range providers {
		if p.IsConfigured() {
			configured = append(configured, p)
		}
	}
	if len(configured) == 0 {
		stub := providers[0]
		r, err := call(stub)
		return r, stub.Name() + "-mock", err
	}

	var errs []error
	for _, p := range configured {
		r, err := call(p)
		if err == nil {
			return r, p.Name(), nil
		}
		logger.Warn("provider failed, trying next", zap.String("provider", p.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return zero, "", errors.Join(errs...)
}
