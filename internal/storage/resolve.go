package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mockupstudio/internal/infra"
)

// Resolve picks the write backend once from configuration. A remote backend
// whose credentials are missing or rejected falls back to the local
// filesystem with a warning. Every remote backend that can be initialised is
// registered for reads so references written before a migration keep working.
func Resolve(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Store, *FileStore, error) {
	local, err := NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		return nil, nil, err
	}

	var object Backend
	objectOpts := ObjectOptions{
		Endpoint:      cfg.ObjectEndpoint,
		AccessKey:     cfg.ObjectAccessKey,
		SecretKey:     cfg.ObjectSecretKey,
		Bucket:        cfg.ObjectBucket,
		Region:        cfg.ObjectRegion,
		UseSSL:        cfg.ObjectUseSSL,
		PublicBaseURL: cfg.ObjectPublicBaseURL,
		PresignExpiry: cfg.ObjectPresignExpiry,
	}
	if objectOpts.configured() {
		if s, err := NewObjectStore(ctx, objectOpts); err != nil {
			logger.Warn().Err(err).Msg("storage: object store unavailable")
		} else {
			object = s
		}
	}

	var remoteDrive Backend
	driveOpts := DriveOptions{
		CredentialsJSON: cfg.DriveCredentialsJSON,
		CredentialsFile: cfg.DriveCredentialsFile,
		ParentFolderID:  cfg.DriveParentFolderID,
	}
	if driveOpts.configured() {
		if s, err := NewDriveStore(ctx, driveOpts); err != nil {
			logger.Warn().Err(err).Msg("storage: drive unavailable")
		} else {
			remoteDrive = s
		}
	}

	writer, err := pickWriter(cfg.StorageBackend, local, object, remoteDrive)
	if err != nil {
		return nil, nil, err
	}
	if writer.Kind() == KindLocal && cfg.StorageBackend != "local" {
		logger.Warn().Str("requested", cfg.StorageBackend).Msg("storage: falling back to local filesystem")
	}
	logger.Info().Str("backend", string(writer.Kind())).Msg("storage: backend selected")

	return NewStore(writer, local, object, remoteDrive), local, nil
}

func pickWriter(name string, local *FileStore, object, remoteDrive Backend) (Backend, error) {
	switch name {
	case "", "local":
		return local, nil
	case "object":
		if object != nil {
			return object, nil
		}
		return local, nil
	case "drive":
		if remoteDrive != nil {
			return remoteDrive, nil
		}
		return local, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", name)
	}
}
