package domain

import (
	"context"

	"github.com/google/go-github/v75/github"
)

// SourceRepository defines the interface for accessing the repository posts are published from (e.g., GitHub).
// This allows the application to be decoupled from a specific implementation.
type SourceRepository interface {
	GetCommitsInRange(ctx context.Context, baseCommit string, headCommit string) ([]*github.RepositoryCommit, error)
	GetCommit(ctx context.Context, sha string) (*github.RepositoryCommit, error)
	GetFileContents(ctx context.Context, path string, ref string) ([]byte, error)
	ListDirectory(ctx context.Context, dir string, ref string) ([]string, error)
	GetDefaultBranchName(ctx context.Context) (string, error)
	GetRepoFullName() string
}
