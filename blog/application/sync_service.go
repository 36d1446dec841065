package application

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/google/go-github/v75/github"
	"github.com/rs/zerolog/log"
)

const (
	sourcePostsDir  = "posts"
	sourceImagesDir = "images"
	zeroSHA         = "0000000000000000000000000000000000000000"
)

var (
	postPathRegex  = regexp.MustCompile(`^posts/([A-Za-z0-9][A-Za-z0-9_-]*)\.md$`)
	imagePathRegex = regexp.MustCompile(`^images/.+\.(?i:jpg|jpeg|png|gif|svg|webp|avif)$`)
)

// SyncService mirrors posts and images from a source repository into the local
// post store and media repository.
type SyncService struct {
	sourceRepo     domain.SourceRepository
	store          domain.PostStore
	media          domain.MediaRepository
	invalidator    domain.PageInvalidator
	mainBranchName string

	// Service lifecycle context - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// NewSyncService creates a sync service. media may be nil, in which case images are not mirrored.
func NewSyncService(
	sourceRepo domain.SourceRepository,
	store domain.PostStore,
	media domain.MediaRepository,
	invalidator domain.PageInvalidator,
	mainBranchName string,
) *SyncService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncService{
		sourceRepo:     sourceRepo,
		store:          store,
		media:          media,
		invalidator:    invalidator,
		mainBranchName: mainBranchName,
		ctx:            ctx,
		cancel:         cancel,
		wg:             &sync.WaitGroup{},
	}
}

// Close gracefully shuts down the SyncService by cancelling all background workers
func (s *SyncService) Close() error {
	s.cancel()
	s.wg.Wait()

	return nil
}

// Wait blocks until every background worker started so far has finished
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// SyncAll copies every post and image on the main branch. Individual file failures are
// logged and do not stop the sync.
func (s *SyncService) SyncAll(ctx context.Context) error {
	ref := "refs/heads/" + s.mainBranchName

	postPaths, err := s.sourceRepo.ListDirectory(ctx, sourcePostsDir, ref)
	if err != nil {
		return fmt.Errorf("failed to list posts in %s: %w", s.sourceRepo.GetRepoFullName(), err)
	}

	synced := 0
	for _, p := range postPaths {
		if !isPostFile(p) {
			continue
		}
		if err := s.syncPost(ctx, p, ref); err != nil {
			log.Error().Err(err).Str("path", p).Msg("Failed to sync post")
			continue
		}
		synced++
	}

	if s.media != nil {
		imagePaths, err := s.sourceRepo.ListDirectory(ctx, sourceImagesDir, ref)
		if err != nil {
			log.Warn().Err(err).Msg("Could not list images, skipping")
		}
		for _, p := range imagePaths {
			if !isImageFile(p) {
				continue
			}
			if err := s.syncImage(ctx, p, ref, time.Now()); err != nil {
				log.Error().Err(err).Str("path", p).Msg("Failed to sync image")
			}
		}
	}

	s.invalidator.InvalidateIndex(ctx)
	log.Info().Int("posts", synced).Str("repo", s.sourceRepo.GetRepoFullName()).Msg("Synced posts from source repository")
	return nil
}

// HandlePushEvent processes a GitHub push event and updates posts accordingly
// This method returns immediately after validating the event and spawning async workers
// Workers use the service's lifecycle context, not the request context
func (s *SyncService) HandlePushEvent(evt *github.PushEvent) error {
	if evt.GetRef() != "refs/heads/"+s.mainBranchName {
		log.Debug().Str("ref", evt.GetRef()).Msg("Ignoring push to non-main branch")
		return nil
	}

	// Get all commits in the push range
	var commits []*github.RepositoryCommit
	if evt.GetBefore() != "" && evt.GetBefore() != zeroSHA {
		var err error
		commits, err = s.sourceRepo.GetCommitsInRange(s.ctx, evt.GetBefore(), evt.GetAfter())
		if err != nil {
			return fmt.Errorf("failed to get commits in range %s...%s: %w", evt.GetBefore(), evt.GetAfter(), err)
		}
	} else {
		// New branch or first commit - just get the head commit
		headCommit, err := s.sourceRepo.GetCommit(s.ctx, evt.GetAfter())
		if err != nil {
			return fmt.Errorf("failed to get commit %s: %w", evt.GetAfter(), err)
		}
		commits = []*github.RepositoryCommit{headCommit}
	}

	filesToProcess, filesToRemove, err := s.analyzeCommitFiles(commits)
	if err != nil {
		return fmt.Errorf("failed to analyze commits: %w", err)
	}

	for filePath := range filesToRemove {
		s.wg.Go(func() {
			if err := s.removeFile(s.ctx, filePath); err != nil {
				log.Error().Err(err).Str("path", filePath).Msg("Failed to remove synced file")
			}
		})
	}

	for filePath, commit := range filesToProcess {
		// Use the commit SHA instead of ref to get the exact file version
		commitSHA := commit.GetSHA()
		modifiedAt := commit.GetCommit().GetAuthor().GetDate().Time

		s.wg.Go(func() {
			var err error
			if isPostFile(filePath) {
				err = s.syncPost(s.ctx, filePath, commitSHA)
			} else {
				err = s.syncImage(s.ctx, filePath, commitSHA, modifiedAt)
			}
			if err != nil {
				log.Error().Err(err).Str("path", filePath).Str("commitSHA", commitSHA).Msg("Failed to sync file")
			}
		})
	}

	return nil
}

func (s *SyncService) syncPost(ctx context.Context, filePath, ref string) error {
	slug := extractPostSlug(filePath)
	content, err := s.sourceRepo.GetFileContents(ctx, filePath, ref)
	if err != nil {
		return err
	}

	if err := s.store.WritePostFile(ctx, slug, content); err != nil {
		return err
	}
	s.invalidator.InvalidatePost(ctx, slug)
	return nil
}

func (s *SyncService) syncImage(ctx context.Context, filePath, ref string, modifiedAt time.Time) error {
	if s.media == nil {
		return nil
	}

	content, err := s.sourceRepo.GetFileContents(ctx, filePath, ref)
	if err != nil {
		return err
	}

	name := path.Base(filePath)
	return s.media.SaveMedia(ctx, &domain.Media{
		Name:         name,
		OriginalName: name,
		Hash:         calculateHash(content),
		ContentType:  mediaTypes[strings.ToLower(path.Ext(name))],
		Size:         int64(len(content)),
		Content:      content,
		UpdatedAt:    modifiedAt,
		CreatedAt:    modifiedAt,
	})
}

func (s *SyncService) removeFile(ctx context.Context, filePath string) error {
	if isPostFile(filePath) {
		slug := extractPostSlug(filePath)
		err := s.store.DeletePostFile(ctx, slug)
		if err != nil && !errors.Is(err, domain.ErrPostNotFound) {
			return err
		}
		s.invalidator.InvalidatePost(ctx, slug)
		return nil
	}

	if s.media == nil {
		return nil
	}
	err := s.media.DeleteMedia(ctx, path.Base(filePath))
	if err != nil && !errors.Is(err, domain.ErrMediaNotFound) {
		return err
	}
	return nil
}

func handleCommitFile(
	path string,
	status string,
	previousPath string,
	fullCommit *github.RepositoryCommit,
	filesToProcess map[string]*github.RepositoryCommit,
	filesToRemove map[string]bool,
) {
	currentSynced := isSyncedFile(path)
	previousSynced := isSyncedFile(previousPath)

	if !currentSynced && !previousSynced {
		return
	}

	// Commits arrive oldest first, so later statuses win
	switch status {
	case "added", "modified":
		if currentSynced {
			filesToProcess[path] = fullCommit
			delete(filesToRemove, path)
		}
	case "removed":
		if currentSynced {
			filesToRemove[path] = true
			delete(filesToProcess, path)
		}
	case "renamed":
		if previousSynced {
			filesToRemove[previousPath] = true
			delete(filesToProcess, previousPath)
		}
		if currentSynced {
			filesToProcess[path] = fullCommit
			delete(filesToRemove, path)
		}
	}
}

// analyzeCommitFiles iterates through commits to determine which files were changed and which were removed.
func (s *SyncService) analyzeCommitFiles(commits []*github.RepositoryCommit) (map[string]*github.RepositoryCommit, map[string]bool, error) {
	filesToProcess := make(map[string]*github.RepositoryCommit)
	filesToRemove := make(map[string]bool)

	for _, commitSummary := range commits {
		fullCommit, err := s.sourceRepo.GetCommit(s.ctx, commitSummary.GetSHA())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get full commit %s: %w", commitSummary.GetSHA(), err)
		}

		for _, file := range fullCommit.Files {
			handleCommitFile(file.GetFilename(), file.GetStatus(), file.GetPreviousFilename(), fullCommit, filesToProcess, filesToRemove)
		}
	}
	return filesToProcess, filesToRemove, nil
}

// isPostFile checks if a file path is a post in the posts/ directory
// Valid format: posts/<slug>.md
func isPostFile(path string) bool {
	return postPathRegex.MatchString(path) && domain.IsPostFileName(strings.TrimPrefix(path, sourcePostsDir+"/"))
}

// isImageFile checks if a file path is an image in the images/ directory
func isImageFile(path string) bool {
	return imagePathRegex.MatchString(path)
}

func isSyncedFile(path string) bool {
	return isPostFile(path) || isImageFile(path)
}

// extractPostSlug extracts the slug from a post path
// Example: "posts/my-post.md" -> "my-post"
func extractPostSlug(path string) string {
	if !isPostFile(path) {
		return ""
	}
	return postPathRegex.FindStringSubmatch(path)[1]
}
