package solodeploy

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Provision hosts with chef-solo over ssh"
	MsgSetupShort      = "Install chef-solo on the hosts"
	MsgUpdateShort     = "Stage cookbooks, data bags and attributes on the hosts"
	MsgRunShort        = "Set up, update and converge the hosts"
	MsgRunListShort    = "Converge the hosts with an explicit run list"
	MsgVersionShort    = "Show the chef-solo version on each host"
	MsgAttributesShort = "Print the merged attributes of hosts and roles"
	MsgPurgeShort      = "Uninstall chef-solo from the hosts"
	MsgConfigShort     = "Print the configuration template"
	MsgTopicsShort     = "Display available documentation topics"
	MsgTopicsLong      = "Display a list of all available help topics that provide additional documentation beyond command help."
	MsgCompletionShort = "Generate shell completion script"
	MsgBuildInfoShort  = "Show build information"

	// Output
	MsgBuildInfoFormat = "solodeploy %s\ncommit: %s\nbuilt:  %s\n"

	// Error messages
	MsgErrInitPaths     = "failed to initialize paths: %w"
	MsgErrLoadConfig    = "failed to load configuration: %w"
	MsgErrSelectHosts   = "failed to select hosts: %w"
	MsgErrCommand       = "%s failed: %w"
	MsgErrUnknownFormat = "unknown format %q, want json or yaml"

	// Flag descriptions
	MsgFlagVerbose   = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig    = "Project config file (default: solodeploy.toml in the project root)"
	MsgFlagRoot      = "Project root (default: nearest directory with a solodeploy config)"
	MsgFlagHosts     = "Only act on these hosts"
	MsgFlagRoles     = "Only act on the members of these roles"
	MsgFlagBootstrap = "Connect as the bootstrap user"
	MsgFlagNoUpdate  = "Reuse the content and documents already on the hosts"
	MsgFlagHost      = "Host whose document is merged (repeatable)"
	MsgFlagRole      = "Role whose document is merged (repeatable)"
	MsgFlagFormat    = "Output format: json or yaml"
	MsgFlagEffective = "Print the configuration in effect instead of the template"
	MsgFlagSet       = "Override a configuration key, e.g. --set deploy.concurrency=4 (repeatable)"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/run-long.txt
	msgRunLongRaw string
	MsgRunLong    = strings.TrimSpace(msgRunLongRaw)

	//go:embed msgs/run-example.txt
	msgRunExampleRaw string
	MsgRunExample    = strings.TrimRight(msgRunExampleRaw, "\n")

	//go:embed msgs/run-list-long.txt
	msgRunListLongRaw string
	MsgRunListLong    = strings.TrimSpace(msgRunListLongRaw)

	//go:embed msgs/run-list-example.txt
	msgRunListExampleRaw string
	MsgRunListExample    = strings.TrimRight(msgRunListExampleRaw, "\n")

	//go:embed msgs/setup-long.txt
	msgSetupLongRaw string
	MsgSetupLong    = strings.TrimSpace(msgSetupLongRaw)

	//go:embed msgs/update-long.txt
	msgUpdateLongRaw string
	MsgUpdateLong    = strings.TrimSpace(msgUpdateLongRaw)

	//go:embed msgs/attributes-long.txt
	msgAttributesLongRaw string
	MsgAttributesLong    = strings.TrimSpace(msgAttributesLongRaw)

	//go:embed msgs/attributes-example.txt
	msgAttributesExampleRaw string
	MsgAttributesExample    = strings.TrimRight(msgAttributesExampleRaw, "\n")

	//go:embed msgs/purge-long.txt
	msgPurgeLongRaw string
	MsgPurgeLong    = strings.TrimSpace(msgPurgeLongRaw)

	//go:embed msgs/config-long.txt
	msgConfigLongRaw string
	MsgConfigLong    = strings.TrimSpace(msgConfigLongRaw)

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)

	//go:embed msgs/fallback-warning.txt
	msgFallbackWarningRaw string
	MsgFallbackWarning    = strings.TrimSpace(msgFallbackWarningRaw) + "\n"

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw) + "\n"
)
