package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/solodeploy/pkg/config"
	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, name, content string) *paths.Paths {
	t.Helper()
	dir := t.TempDir()
	if name != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	p, err := paths.New(dir)
	require.NoError(t, err)
	return p
}

func TestDefault(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	assert.Equal(t, config.TransportOpenSSH, cfg.Deploy.Transport)
	assert.Equal(t, 1, cfg.Deploy.Concurrency)
	assert.True(t, cfg.Deploy.UseSudo)
	assert.Equal(t, 30*time.Second, cfg.Deploy.Timeout)
	assert.False(t, cfg.Bootstrap.Enabled)
	assert.Nil(t, cfg.Bootstrap.SSHOptions)

	assert.Equal(t, "11.4.0", cfg.Solo.Version)
	assert.Equal(t, "chef-solo", cfg.Solo.Cmd)
	assert.True(t, cfg.Solo.UseBundler)

	assert.Equal(t, "tmp", cfg.Repository.Cache)
	assert.Equal(t, []string{".hg", ".git", ".svn"}, cfg.Repository.Exclude)
	assert.Equal(t, "none", cfg.Cookbooks.SCM)
	assert.Equal(t, "config/cookbooks", cfg.Cookbooks.Subdir)
	assert.Equal(t, "config/data_bags", cfg.DataBags.Subdir)

	assert.True(t, cfg.Attributes.PrettyJSON)
	assert.Len(t, cfg.Attributes.Include, 8)
	assert.Equal(t, []string{"logger", "/password/", "source", "strategy"}, cfg.Attributes.Exclude)
	assert.NotNil(t, cfg.Attributes.Global)
}

func TestLoadProjectFile(t *testing.T) {
	p := writeProject(t, "solodeploy.toml", `
application = "shop"

[deploy]
user = "deploy"
concurrency = 3

[deploy.ssh_options]
port = 2222
auth_methods = ["publickey"]

[cookbooks]
scm = "git"
repository = "https://example.com/cookbooks.git"

[[cookbooks.repos]]
name = "base"
scm = "git"
repository = "https://example.com/base.git"
cookbooks = "legacy"

[attributes]
run_list = ["recipe[base]"]

[attributes.global]
foo = "bar"

[attributes.global.nested]
level = 2

[[roles]]
name = "web"
hosts = ["web1", "web2"]
run_list = ["recipe[nginx]"]
host_attributes = { nginx = { port = 80 } }

[[roles]]
name = "db"
hosts = ["db1"]

[[hosts]]
name = "web1"
run_list = ["recipe[monitoring]"]
attributes = { tier = "front" }
`)

	cfg, err := config.Load(config.Options{Paths: p})
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Application)
	assert.Equal(t, p.ConfigFile(), cfg.SourceFile)
	assert.Equal(t, p.Root(), cfg.ProjectRoot)

	assert.Equal(t, "deploy", cfg.Deploy.User)
	assert.Equal(t, 3, cfg.Deploy.Concurrency)
	assert.Equal(t, 2222, cfg.Deploy.SSHOptions.Port)
	assert.Equal(t, []string{"publickey"}, cfg.Deploy.SSHOptions.AuthMethods)

	// untouched defaults survive the merge
	assert.Equal(t, "config/cookbooks", cfg.Cookbooks.Subdir)
	assert.Equal(t, "git", cfg.Cookbooks.SCM)
	require.Len(t, cfg.Cookbooks.Repos, 1)
	assert.Equal(t, "base", cfg.Cookbooks.Repos[0].Name)
	assert.Equal(t, "legacy", cfg.Cookbooks.Repos[0].Cookbooks)

	assert.Equal(t, []string{"recipe[base]"}, cfg.Attributes.RunList)
	assert.Equal(t, "bar", cfg.Attributes.Global["foo"])
	nested, ok := cfg.Attributes.Global["nested"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, nested["level"])

	require.Len(t, cfg.Roles, 2)
	assert.Equal(t, "web", cfg.Roles[0].Name)
	assert.Equal(t, "db", cfg.Roles[1].Name)
	assert.Equal(t, []string{"web1", "web2"}, cfg.Roles[0].Hosts)
	assert.Contains(t, cfg.Roles[0].HostAttributes, "nginx")

	require.Len(t, cfg.Hosts, 1)
	assert.Equal(t, "front", cfg.Hosts[0].Attributes["tier"])
}

func TestLoadApplicationDefaultsToRootName(t *testing.T) {
	p := writeProject(t, "solodeploy.toml", "[deploy]\nuser = \"x\"\n")

	cfg, err := config.Load(config.Options{Paths: p})
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(p.Root()), cfg.Application)
}

func TestLoadYAML(t *testing.T) {
	p := writeProject(t, "solodeploy.yaml", `
application: yamlapp
deploy:
  transport: local
roles:
  - name: web
    hosts: [localhost]
`)

	cfg, err := config.Load(config.Options{Paths: p})
	require.NoError(t, err)
	assert.Equal(t, "yamlapp", cfg.Application)
	assert.Equal(t, config.TransportLocal, cfg.Deploy.Transport)
	require.Len(t, cfg.Roles, 1)
	assert.Equal(t, []string{"localhost"}, cfg.Roles[0].Hosts)
}

func TestLoadEnvOverrides(t *testing.T) {
	p := writeProject(t, "solodeploy.toml", "[deploy]\nuser = \"deploy\"\n")
	t.Setenv("SOLODEPLOY_DEPLOY__PASSWORD", "from-env")
	t.Setenv("SOLODEPLOY_DEPLOY__CONCURRENCY", "4")
	t.Setenv("SOLODEPLOY_DEPLOY__SSH_OPTIONS__AUTH_METHODS", "publickey,password")

	cfg, err := config.Load(config.Options{Paths: p})
	require.NoError(t, err)
	assert.Equal(t, "deploy", cfg.Deploy.User)
	assert.Equal(t, "from-env", cfg.Deploy.Password)
	assert.Equal(t, 4, cfg.Deploy.Concurrency)
	assert.Equal(t, []string{"publickey", "password"}, cfg.Deploy.SSHOptions.AuthMethods)
}

func TestLoadOverridesWinOverEnv(t *testing.T) {
	p := writeProject(t, "solodeploy.toml", "[deploy]\nuser = \"deploy\"\n")
	t.Setenv("SOLODEPLOY_DEPLOY__CONCURRENCY", "4")

	overrides, err := config.ParseOverrides([]string{"deploy.concurrency=8", "solo.path = /srv/chef"})
	require.NoError(t, err)

	cfg, err := config.Load(config.Options{Paths: p, Overrides: overrides})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Deploy.Concurrency)
	assert.Equal(t, "/srv/chef", cfg.Solo.Path)
	assert.Equal(t, "deploy", cfg.Deploy.User)
}

func TestParseOverridesRejectsMissingValue(t *testing.T) {
	_, err := config.ParseOverrides([]string{"deploy.user"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestLoadDotEnv(t *testing.T) {
	p := writeProject(t, "solodeploy.toml", "")
	require.NoError(t, os.WriteFile(p.DotEnvFile(), []byte("SOLODEPLOY_BOOTSTRAP__PASSWORD=dotenv-secret\n"), 0600))

	// register cleanup, then make sure the variable starts unset
	t.Setenv("SOLODEPLOY_BOOTSTRAP__PASSWORD", "")
	require.NoError(t, os.Unsetenv("SOLODEPLOY_BOOTSTRAP__PASSWORD"))

	cfg, err := config.Load(config.Options{Paths: p})
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Bootstrap.Password)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	p := writeProject(t, "", "")

	_, err := config.Load(config.Options{Paths: p, File: filepath.Join(p.Root(), "nope.toml")})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
}

func TestLoadParseError(t *testing.T) {
	p := writeProject(t, "solodeploy.toml", "[deploy\nuser=")

	_, err := config.Load(config.Options{Paths: p})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
}
