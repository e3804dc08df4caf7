// Package model defines the data structures shared by mutflow's workflows.
package model

// Path represents a file system path.
type Path string

// Project is one unit of work: a Defects4J project at a given bug and version.
type Project struct {
	ID          string `yaml:"project_id" validate:"required"`
	PackagePath string `yaml:"project_path" validate:"required"`
	BugID       string `yaml:"bug_id" validate:"required,numeric"`
	Version     string `yaml:"fixed_version" validate:"required,oneof=b f"`
	IDDir       string `yaml:"id_dir"`
	TestDir     string `yaml:"test_dir"`
}

// VersionSpec returns the checkout qualifier, e.g. "1f".
func (p Project) VersionSpec() string {
	return p.BugID + p.Version
}

// Key identifies the project/bug pair in file names and logs.
func (p Project) Key() string {
	return p.ID + "_" + p.BugID
}
