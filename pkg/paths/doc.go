// Package paths provides centralized path handling for solodeploy.
//
// It resolves the project root (the directory holding solodeploy.toml and,
// by convention, config/cookbooks and config/data_bags) and the XDG
// directories used for the log file and the repository fetch cache.
//
// # Environment Variables
//
//   - SOLODEPLOY_ROOT: explicit project root
//   - SOLODEPLOY_CACHE_DIR: override for the fetch cache directory
//     (default: $XDG_CACHE_HOME/solodeploy)
//
// # Usage
//
//	p, err := paths.New("")  // auto-detect project root
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfgFile := p.ConfigFile()  // /home/user/infra/solodeploy.toml
package paths
