package deepfreeze

import (
	"context"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/model"
	"github.com/curatorhq/curator/internal/s3store"
)

// SetupOptions are the one-shot initialization inputs (spec §4.3.1).
type SetupOptions struct {
	RepoNamePrefix   string
	BucketNamePrefix string
	BasePathPrefix   string
	StorageClass     string
	RotateBy         model.RotateBy
	Style            model.RotateStyle
	Provider         string
	Keep             int
}

// Setup performs the one-shot Deepfreeze initialization: creates the
// first bucket/path, registers the first ES repository, and writes the
// settings document plus the first repository record.
func Setup(ctx context.Context, env *Env, opts SetupOptions) (model.Settings, model.Repository, error) {
	if opts.RepoNamePrefix == "" || opts.BucketNamePrefix == "" {
		return model.Settings{}, model.Repository{}, curatorerr.New(curatorerr.ConfigError, "setup requires repo_name_prefix and bucket_name_prefix")
	}
	existing, found, err := env.Store.GetSettings(ctx)
	if err != nil {
		return model.Settings{}, model.Repository{}, err
	}
	if found {
		env.Log.Infof("deepfreeze already initialized, settings document exists")
		repo, repoFound, err := env.Store.GetRepository(ctx, RepositoryName(existing, existing.LastSuffix))
		if err != nil {
			return model.Settings{}, model.Repository{}, err
		}
		if repoFound {
			return existing, repo, nil
		}
	}

	suffix, err := NextSuffix(opts.Style, "", 0, 0, s3store.Now())
	if err != nil {
		return model.Settings{}, model.Repository{}, err
	}

	settings := model.Settings{
		RepoNamePrefix: opts.RepoNamePrefix, BucketNamePrefix: opts.BucketNamePrefix,
		BasePathPrefix: opts.BasePathPrefix, StorageClass: opts.StorageClass,
		RotateBy: opts.RotateBy, LastSuffix: suffix, Provider: opts.Provider, Style: opts.Style, Keep: opts.Keep,
	}
	if settings.Keep == 0 {
		settings.Keep = 6
	}

	bucket := BucketName(settings, suffix)
	basePath := BasePath(settings, suffix)
	repoName := RepositoryName(settings, suffix)

	if env.DryRun {
		env.Log.Infof("dry-run: would create bucket/path %s/%s and repository %s", bucket, basePath, repoName)
		return settings, model.Repository{Name: repoName, Bucket: bucket, BasePath: basePath, Suffix: suffix, IsMounted: true, ThawState: model.ThawActive}, nil
	}

	if err := env.S3.EnsureBucketExists(ctx, bucket); err != nil {
		return model.Settings{}, model.Repository{}, err
	}
	if err := env.Snapshot.RegisterRepository(ctx, repoName, bucket, basePath, nil); err != nil {
		return model.Settings{}, model.Repository{}, curatorerr.Wrap(curatorerr.Cluster, "registering repository "+repoName, err)
	}

	if err := env.Store.SaveSettings(ctx, settings, found); err != nil {
		return model.Settings{}, model.Repository{}, err
	}

	repo := model.Repository{
		Name: repoName, Bucket: bucket, BasePath: basePath, Suffix: suffix,
		IsMounted: true, ThawState: model.ThawActive,
	}
	if err := env.Store.SaveRepository(ctx, repo, false); err != nil {
		return model.Settings{}, model.Repository{}, err
	}
	return settings, repo, nil
}
