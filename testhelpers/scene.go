package testhelpers

import (
	"path/filepath"
	"testing"
)

// Scene is a working repository with two bare remotes: origin, which the
// engine clones from, and fork, which tracking branches are pushed to.
type Scene struct {
	Dir    string
	Repo   *GitRepo
	Origin string
	Fork   string
}

// SceneSetup is a function type for setting up a scene.
type SceneSetup func(*Scene) error

// NewScene creates a new test scene in a temporary directory.
// The directory is removed by the testing framework.
func NewScene(t *testing.T, setup SceneSetup) *Scene {
	t.Helper()
	t.Setenv("GIT_CONFIG_GLOBAL", "/dev/null")

	tmpDir := t.TempDir()

	repo, err := NewGitRepo(filepath.Join(tmpDir, "work"))
	if err != nil {
		t.Fatalf("Failed to create Git repo: %v", err)
	}

	origin, err := repo.CreateBareRemote("origin")
	if err != nil {
		t.Fatalf("Failed to create origin: %v", err)
	}
	fork, err := repo.CreateBareRemote("fork")
	if err != nil {
		t.Fatalf("Failed to create fork: %v", err)
	}

	scene := &Scene{
		Dir:    tmpDir,
		Repo:   repo,
		Origin: origin,
		Fork:   fork,
	}

	if setup != nil {
		if err := setup(scene); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}

	return scene
}

// Publish pushes every branch of the working repository to origin.
func (s *Scene) Publish() error {
	return s.Repo.PushAll("origin")
}

// BasicSceneSetup creates a base commit on main and a next-1.0 release branch,
// both published to origin.
func BasicSceneSetup(scene *Scene) error {
	if err := scene.Repo.CreateChangeAndCommit("base", "shared"); err != nil {
		return err
	}
	if err := scene.Repo.CreateBranch("next-1.0"); err != nil {
		return err
	}
	return scene.Publish()
}
