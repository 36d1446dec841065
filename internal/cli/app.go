package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dfryer1193/inkblog/blog/application"
	"github.com/dfryer1193/inkblog/blog/cache"
	"github.com/dfryer1193/inkblog/blog/persistence"
	"github.com/dfryer1193/inkblog/blog/render"
	"github.com/dfryer1193/inkblog/internal/config"
	"github.com/dfryer1193/inkblog/internal/rest"
	"github.com/dfryer1193/inkblog/shared/db/sqlite"
	"github.com/dfryer1193/inkblog/shared/fswatch"
	gh "github.com/dfryer1193/inkblog/shared/github"
	"github.com/dfryer1193/inkblog/shared/redisstore"
	"github.com/dfryer1193/inkblog/shared/s3store"
	webhook "github.com/dfryer1193/inkblog/webhook/http"
	"github.com/rs/zerolog/log"
)

// app holds the long-lived components of a running server
type app struct {
	cfg *config.Config

	db       *sqlite.SQLiteDB
	pages    *cache.PageCache
	renderer *render.Renderer
	posts    *application.PostService
	pageSvc  *application.PageService
	media    *application.MediaService
	auth     *application.AuthService
	sync     *application.SyncService
	webhook  *webhook.WebhookHandler
	watcher  *fswatch.Watcher

	closers []io.Closer
}

func newRenderer(cfg *config.Config) (*render.Renderer, error) {
	return render.NewRenderer(render.Site{
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		BaseURL:     cfg.Site.BaseURL,
	})
}

// newPageStore returns the backing store for the configured cache backend, nil for memory only
func newPageStore(ctx context.Context, cfg *config.Config) (cache.Store, io.Closer, error) {
	switch cfg.Cache.Backend {
	case config.BackendFile:
		return cache.NewFileStore(cfg.Cache.Dir), nil, nil
	case config.BackendS3:
		client, err := s3store.NewClient(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3store.NewPageStore(cfg.S3.Bucket, cfg.S3.Prefix, client), nil, nil
	case config.BackendRedis:
		client := redisstore.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		return redisstore.NewPageStore(client, cfg.Redis.Prefix, cfg.Redis.Expiry), client, nil
	default:
		return nil, nil, nil
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	for _, dir := range []string{cfg.Paths.Posts, cfg.Paths.Uploads} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	a.db = sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig(cfg.Paths.Database))
	if err := a.db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, a.db)

	store, storeCloser, err := newPageStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up %s page store: %w", cfg.Cache.Backend, err)
	}
	if storeCloser != nil {
		a.closers = append(a.closers, storeCloser)
	}

	opts := []cache.Option{cache.WithTTL(cfg.Cache.TTL)}
	if store != nil {
		opts = append(opts, cache.WithStore(store))
	}
	a.pages = cache.NewPageCache(opts...)

	a.renderer, err = newRenderer(cfg)
	if err != nil {
		return err
	}

	postStore := persistence.NewFilePostStore(cfg.Paths.Posts)
	mediaRepo := persistence.NewMediaRepository(a.db.DB(), cfg.Paths.Uploads)

	a.posts = application.NewPostService(postStore, application.NewMarkdownRenderer(cfg.Site.BaseURL), a.pages)
	a.pageSvc = application.NewPageService(a.posts, a.renderer, a.pages)
	a.media = application.NewMediaService(mediaRepo, cfg.Admin.MaxUploadSize)

	if cfg.AdminEnabled() {
		a.auth, err = application.NewAuthService(application.AuthConfig{
			Username:     cfg.Admin.Username,
			Password:     cfg.Admin.Password,
			PasswordHash: cfg.Admin.PasswordHash,
			Secret:       cfg.Auth.JWTSecret,
			TokenTTL:     cfg.Auth.TokenTTL,
		})
		if err != nil {
			return fmt.Errorf("failed to set up admin auth: %w", err)
		}
	}

	if cfg.GithubEnabled() {
		sourceRepo := gh.NewGithubSourceRepository(gh.NewClient(ctx, cfg.Github.Token), cfg.Github.Owner, cfg.Github.Repo)

		branch := cfg.Github.Branch
		if branch == "" {
			branch, err = sourceRepo.GetDefaultBranchName(ctx)
			if err != nil {
				return fmt.Errorf("failed to get default branch name: %w", err)
			}
		}

		a.sync = application.NewSyncService(sourceRepo, postStore, mediaRepo, a.pages, branch)
		a.closers = append(a.closers, a.sync)

		if cfg.Github.WebhookSecret != "" {
			a.webhook, err = webhook.NewWebhookHandler(cfg.Github.WebhookSecret, a.sync)
			if err != nil {
				return err
			}
		} else {
			log.Warn().Msg("github.webhook_secret is not set, pushes will not be synced")
		}
	}

	if cfg.Server.Watch {
		a.watcher, err = fswatch.NewWatcher(cfg.Paths.Posts, cfg.Server.WatchDebounce, a.invalidatePosts)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, a.watcher)
	}

	return nil
}

// Start runs the background work: the initial sync, the posts watcher and the cache janitor
func (a *app) Start(ctx context.Context) error {
	if a.sync != nil {
		if err := a.sync.SyncAll(ctx); err != nil {
			log.Error().Err(err).Msg("Initial sync failed, serving local posts")
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return err
		}
	}
	a.pages.StartJanitor(ctx, a.cfg.Cache.JanitorInterval)
	return nil
}

func (a *app) invalidatePosts(slugs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, slug := range slugs {
		a.pages.InvalidatePost(ctx, slug)
	}
	log.Info().Strs("slugs", slugs).Msg("Posts changed on disk, invalidated cached pages")
}

func (a *app) services() rest.Services {
	return rest.Services{
		Posts:      a.posts,
		Pages:      a.pageSvc,
		Cache:      a.pages,
		Media:      a.media,
		Auth:       a.auth,
		URLs:       a.renderer,
		UploadsDir: a.cfg.Paths.Uploads,
	}
}

// Close releases components in reverse order of creation
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Msg("Failed to close cleanly")
		return err
	}
	return nil
}
