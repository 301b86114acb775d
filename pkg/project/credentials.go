package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/go-playground/validator.v9"
)

// Credentials is the identity material of one project context, lifted from
// OS_* environment variables or an RC file. Password may be empty here; the
// run-wide password fills it in later.
type Credentials struct {
	Username    string `validate:"required"`
	ProjectID   string `validate:"required"`
	ProjectName string
	AuthURL     string `validate:"required,url"`
	Password    string
}

var validate = validator.New()

// Context is a named credential context. The name only serves log output.
type Context struct {
	Name        string
	Credentials Credentials
}

func credentialsFromLookup(lookup func(string) string) Credentials {
	pick := func(keys ...string) string {
		for _, key := range keys {
			if v := lookup(key); v != "" {
				return v
			}
		}
		return ""
	}

	return Credentials{
		Username:    pick("OS_USERNAME"),
		ProjectID:   pick("OS_PROJECT_ID", "OS_TENANT_ID"),
		ProjectName: pick("OS_PROJECT_NAME", "OS_TENANT_NAME"),
		AuthURL:     pick("OS_AUTH_URL"),
		Password:    pick("OS_PASSWORD"),
	}
}

// FromEnv builds credentials from the inherited process environment.
func FromEnv() (Credentials, error) {
	creds := credentialsFromLookup(os.Getenv)
	if err := validate.Struct(creds); err != nil {
		return creds, fmt.Errorf("incomplete credentials in environment: %w", err)
	}
	return creds, nil
}

// FromFile builds credentials from an RC file of KEY=VALUE lines, with or
// without `export ` prefixes. A malformed or incomplete file is fatal for
// the whole run, not a skip.
func FromFile(path string) (Credentials, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credential file %s: %w", path, err)
	}

	creds := credentialsFromLookup(func(key string) string { return values[key] })
	if err := validate.Struct(creds); err != nil {
		return creds, fmt.Errorf("incomplete credentials in %s: %w", path, err)
	}
	return creds, nil
}

// Environ renders the credentials as OS_* environment assignments for a
// subprocess backend.
func (c Credentials) Environ() []string {
	env := []string{
		"OS_USERNAME=" + c.Username,
		"OS_PROJECT_ID=" + c.ProjectID,
		"OS_TENANT_ID=" + c.ProjectID,
		"OS_AUTH_URL=" + c.AuthURL,
	}
	if c.ProjectName != "" {
		env = append(env,
			"OS_PROJECT_NAME="+c.ProjectName,
			"OS_TENANT_NAME="+c.ProjectName,
		)
	}
	if c.Password != "" {
		env = append(env, "OS_PASSWORD="+c.Password)
	}
	return env
}

// rcFileSuffixes is the naming convention for credential files picked up
// from a directory.
var rcFileSuffixes = []string{".rc", "-openrc.sh"}

func isRCFile(name string) bool {
	for _, suffix := range rcFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Contexts expands an --rc argument into the credential contexts of the
// run. Empty path means the inherited environment; a file means that single
// file; a directory means every credential file in it, in name order.
func Contexts(rcPath string) ([]Context, error) {
	if rcPath == "" {
		creds, err := FromEnv()
		if err != nil {
			return nil, err
		}
		return []Context{{Name: "environment", Credentials: creds}}, nil
	}

	info, err := os.Stat(rcPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", rcPath, err)
	}

	if !info.IsDir() {
		creds, err := FromFile(rcPath)
		if err != nil {
			return nil, err
		}
		return []Context{{Name: rcPath, Credentials: creds}}, nil
	}

	entries, err := os.ReadDir(rcPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", rcPath, err)
	}

	var contexts []Context
	for _, entry := range entries {
		if entry.IsDir() || !isRCFile(entry.Name()) {
			continue
		}
		path := filepath.Join(rcPath, entry.Name())
		creds, err := FromFile(path)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, Context{Name: path, Credentials: creds})
	}

	if len(contexts) == 0 {
		return nil, fmt.Errorf("no credential files found in %s", rcPath)
	}
	return contexts, nil
}
