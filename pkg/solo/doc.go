// Package solo drives chef-solo on remote hosts.
//
// A Runner sequences the commands: setup installs chef-solo, update stages
// cookbooks, data bags, role and host documents and solo.rb, and invoke
// runs chef-solo. Each command runs inside the bootstrap identity scope
// when bootstrap mode is enabled, and across hosts with the configured
// concurrency.
package solo
