package main

import (
	"context"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/store"
	"github.com/slmtnm/s3ranger/internal/store/awss3"
	"github.com/slmtnm/s3ranger/internal/store/memory"
	"github.com/slmtnm/s3ranger/internal/store/minio"
)

// newClient builds the driver selected by cfg.Provider.
func newClient(ctx context.Context, cfg *store.Config) (store.Client, error) {
	switch cfg.Provider {
	case store.ProviderAWS:
		c, err := awss3.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case store.ProviderMinIO:
		d, err := minio.New(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case store.ProviderMemory:
		return memory.NewDemo(), nil
	default:
		return nil, errs.Newf(errs.KindInvalidInput, "unknown provider %q", cfg.Provider)
	}
}
